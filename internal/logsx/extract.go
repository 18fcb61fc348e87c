// Package logsx implements the log-extraction algorithms the /system/logs
// and /system/accounting endpoints expose: reverse-chunked reading of an
// append-only log file, since-exclusive filtering, size-bounded
// accumulation, severity bucketing, and zlib+base85 compression.
// Grounded on original_source/.../api/logs_processing.py.
package logsx

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"
)

// timestampPrefixLen is len("1970-01-01 00:00:00,000"), the fixed-width
// datetime prefix every log line starts with.
const timestampPrefixLen = len("1970-01-01 00:00:00,000")

// timeLayout matches internal/logging's line-prefix format.
const timeLayout = "2006-01-02 15:04:05,000"

// ExtractedLines is the result of GetLines: the matched, size-bounded log
// text, the datetime of its last line (nil if no lines matched), and
// whether more matching data existed beyond max_size.
type ExtractedLines struct {
	Lines        string
	LastDatetime string
	MoreData     bool
}

// reverseReadLines returns every line of the file at path, read back to
// front, oldest-last -- the Go translation of reverse_readline's chunked
// backward scan. Lines are read in 8KiB chunks from the end so the
// whole file is never pulled into memory, matching the original's
// buf_size default.
func reverseReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	const bufSize = 8192

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := info.Size()
	remaining := fileSize

	var lines []string
	var segment []byte
	offset := int64(0)

	for remaining > 0 {
		offset = min64(fileSize, offset+bufSize)
		if _, err := f.Seek(fileSize-offset, io.SeekStart); err != nil {
			return nil, err
		}
		toRead := min64(remaining, bufSize)
		buf := make([]byte, toRead)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, err
		}

		if remaining == fileSize && len(buf) > 0 && buf[len(buf)-1] == '\n' {
			buf = buf[:len(buf)-1]
		}
		remaining -= bufSize

		chunkLines := bytes.Split(buf, []byte("\n"))
		if segment != nil {
			chunkLines[len(chunkLines)-1] = append(chunkLines[len(chunkLines)-1], segment...)
		}
		segment = chunkLines[0]
		chunkLines = chunkLines[1:]

		for i := len(chunkLines) - 1; i >= 0; i-- {
			lines = append(lines, string(chunkLines[i]))
		}
	}
	if segment != nil {
		lines = append(lines, string(segment))
	}
	return lines, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// detectSeverity returns the first of DEBUG/INFO/WARNING/ERROR/CRITICAL
// (lowercased) that appears as a substring of line, or "unknown".
func detectSeverity(line string) string {
	for _, severity := range []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"} {
		if strings.Contains(line, severity) {
			return strings.ToLower(severity)
		}
	}
	return "unknown"
}

// findLinesSinceExclusive returns every line newer than since, reading
// path back to front and stopping at the first line not newer than
// since. include controls whether a line exactly equal to since itself
// matches; the original appends a "~" sentinel to since (the highest
// printable ASCII character below common log punctuation) so a plain
// string comparison excludes an exact match without a separate equality
// branch.
func findLinesSinceExclusive(path, since string, include bool) ([]string, error) {
	lines, err := reverseReadLines(path)
	if err != nil {
		return nil, err
	}
	threshold := since
	if !include {
		threshold = since + "~"
	}
	var matched []string
	for _, line := range lines {
		if line <= threshold {
			break
		}
		matched = append(matched, line)
	}
	return matched, nil
}

// selectUntilLimit accumulates lines (oldest-first output, though
// supplied newest-first) until adding the next would exceed maxSize,
// matching select_lines_until_limit_is_reached's greedy fill + early
// "more data" stop.
func selectUntilLimit(lines []string, maxSize int) ExtractedLines {
	var buf strings.Builder
	var lastDatetime string
	moreData := false

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if buf.Len()+len(line) <= maxSize {
			buf.WriteString(line)
			buf.WriteByte('\n')
			if len(line) >= timestampPrefixLen {
				lastDatetime = line[:timestampPrefixLen]
			} else {
				lastDatetime = line
			}
		} else {
			moreData = true
			break
		}
	}
	return ExtractedLines{Lines: buf.String(), LastDatetime: lastDatetime, MoreData: moreData}
}

// GetLines returns every line of the log file at path newer than since,
// bounded to maxSize bytes before compression. maxSize <= 0 defaults to
// 1,000,000, matching the original's default.
func GetLines(path, since string, maxSize int) (ExtractedLines, error) {
	if maxSize <= 0 {
		maxSize = 1_000_000
	}
	matched, err := findLinesSinceExclusive(path, since, false)
	if err != nil {
		return ExtractedLines{}, err
	}
	return selectUntilLimit(matched, maxSize), nil
}

// Statistics buckets every log line newer than now-deltaMinutes by
// severity, matching the statistics() function used by
// /system/logs/stats.
func Statistics(path string, deltaMinutes int) (map[string]int, error) {
	counters := map[string]int{
		"debug": 0, "info": 0, "warning": 0, "error": 0, "critical": 0, "unknown": 0,
	}

	threshold := time.Now().Add(-time.Duration(deltaMinutes) * time.Minute).Format(timeLayout)

	lines, err := reverseReadLines(path)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if line <= threshold {
			break
		}
		counters[detectSeverity(line)]++
	}
	return counters, nil
}
