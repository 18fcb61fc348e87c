package api

import (
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/rysavy-ondrej/project-inventor/internal/logsx"
)

// extractLog reads lines newer than the request's since/max_size/
// compression_alg query params from the file at path, applying
// compression after extraction when an algorithm was requested. Shared by
// systemLogsHandler and systemAccountingHandler -- they differ only in
// which sink they read.
func (s *Server) extractLog(c *echo.Context, path string) error {
	since, maxSize, alg := s.logsQuery(c)

	extracted, err := logsx.GetLines(path, since, maxSize)
	if err != nil {
		return internalError(c, "failed to read log file")
	}

	resp := &logsResponse{
		Data:         extracted.Lines,
		LastDatetime: extracted.LastDatetime,
		MoreData:     extracted.MoreData,
	}

	if alg != "" {
		compressed, err := logsx.Compress(extracted.Lines, alg)
		if err != nil {
			return badRequest(c, "unknown compression algorithm")
		}
		resp.Data = compressed
		resp.CompressionAlg = &alg
	}

	return c.JSON(200, resp)
}

// logStats buckets the file at path's last N minutes of lines by severity.
func (s *Server) logStats(c *echo.Context, path string) error {
	minutes := 60
	if raw := c.QueryParam("minutes"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			minutes = n
		}
	}

	counters, err := logsx.Statistics(path, minutes)
	if err != nil {
		return internalError(c, "failed to read log file")
	}

	return c.JSON(200, &logsStatsResponse{
		Debug:    counters["debug"],
		Info:     counters["info"],
		Warning:  counters["warning"],
		Error:    counters["error"],
		Critical: counters["critical"],
		Unknown:  counters["unknown"],
	})
}
