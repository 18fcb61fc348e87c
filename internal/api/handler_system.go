package api

import (
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// systemConfigHandler exposes the "public" config section only, any
// session tier -- matching original_source/.../api/endpoints/system.py's
// read_config's authorize_request(request, "").
func (s *Server) systemConfigHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorizeAnySession(c); err != nil {
		return forbidden(c, err.Error())
	}
	return c.JSON(200, &configResponse{
		Options: map[string]map[string]string{publicConfigSectionName: s.cfg.PublicSection()},
	})
}

// publicConfigSectionName matches config.ini's "public" section name, the
// one section GET /system/config is allowed to reveal.
const publicConfigSectionName = "public"

// systemConfigPatchHandler overwrites one or more existing config options,
// root tier only, persisting to configPath immediately on each option --
// matching Configuration.set's immediate-save semantics.
func (s *Server) systemConfigPatchHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	var req configChangeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	applied := make(map[string]map[string]string, len(req.Options))
	for section, options := range req.Options {
		applied[section] = make(map[string]string, len(options))
		for option, value := range options {
			if err := s.cfg.SetOption(s.configPath, section, option, value); err != nil {
				applied[section][option] = "rejected: " + err.Error()
				continue
			}
			applied[section][option] = "updated"
		}
	}
	return c.JSON(200, &configChangeResponse{Options: applied})
}

// systemConfigAllHandler dumps every config section, root tier only.
func (s *Server) systemConfigAllHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	return c.JSON(200, &configResponse{Options: s.cfg.AllSections()})
}

// systemOrchestratorsHandler lists every orchestrator seen by the server,
// most recently seen first, root tier only.
func (s *Server) systemOrchestratorsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	rows, err := s.set.Orchestrators.GetAll(c.Request().Context())
	if err != nil {
		return internalError(c, "failed to list orchestrators")
	}
	out := make([]*orchestratorResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, &orchestratorResponse{Name: row.Name, LastSeen: unixSeconds(row.LastSeen)})
	}
	return c.JSON(200, &orchestratorsResponse{Orchestrators: out})
}

// logsQuery reads the since/max_size/compression_alg query params shared
// by /system/logs and /system/accounting, clamping max_size to the
// configured ceiling the way original_source/.../api/endpoints/system.py's
// handlers do.
func (s *Server) logsQuery(c *echo.Context) (since string, maxSize int, alg models.CompressionAlg) {
	since = c.QueryParam("since")
	maxSize = s.cfg.Logging.APIMaxLogsSizeInt
	if raw := c.QueryParam("max_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < maxSize {
			maxSize = n
		}
	}
	alg = models.CompressionAlg(c.QueryParam("compression_alg"))
	return since, maxSize, alg
}

// systemLogsHandler extracts lines from the debug log sink, root tier
// only, optionally compressing the result as a separate step after
// extraction (mirroring get_lines_from_file's own conditional
// compress_data call).
func (s *Server) systemLogsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	return s.extractLog(c, s.debugSink.Path())
}

// systemLogsStatsHandler buckets the debug log's last N minutes by
// severity, root tier only.
func (s *Server) systemLogsStatsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	return s.logStats(c, s.debugSink.Path())
}

// systemAccountingHandler extracts lines from the accounting log sink,
// root tier only -- same shape as /system/logs but a different file.
func (s *Server) systemAccountingHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	return s.extractLog(c, s.accountingSink.Path())
}
