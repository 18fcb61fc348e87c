// Package logging configures the agent's two logging surfaces: ordinary
// operational logging via log/slog (the teacher's own style — see
// pkg/api/server.go, pkg/config/loader.go), and the two append-only
// timestamped text sinks spec.md §6 requires orchestrators be able to
// fetch over HTTP (the debug log and the accounting log), built on
// rs/zerolog for structured, rotation-friendly file writing.
package logging

import (
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// timestampFormat matches spec.md §6's line-prefix format exactly:
// "YYYY-MM-DD HH:MM:SS,mmm".
const timestampFormat = "2006-01-02 15:04:05,000"

// Sink is one of the two append-only log files described by spec.md §6
// and read back by internal/logsx.
type Sink struct {
	logger zerolog.Logger
	file   *os.File
	path   string
}

// OpenSink opens (creating if necessary) the log file at path for
// appending, returning a Sink that writes one timestamped line per
// message in "YYYY-MM-DD HH:MM:SS,mmm SEVERITY: message key=value..."
// form — zerolog.ConsoleWriter configured as a plain-text, no-color
// formatter rather than its default JSON encoding, since the files are
// read back as line-oriented text by internal/logsx, not parsed as
// structured records.
func OpenSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	writer := zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: timestampFormat,
		FormatLevel: func(i any) string {
			return ""
		},
	}
	logger := zerolog.New(writer).With().Timestamp().Logger()
	return &Sink{logger: logger, file: f, path: path}, nil
}

// Path returns the file path the sink was opened against, used by
// internal/logsx to read the sink back for the /system/logs and
// /system/accounting endpoints.
func (s *Sink) Path() string { return s.path }

// Close releases the underlying file handle.
func (s *Sink) Close() error { return s.file.Close() }

// Debug, Info, Warning, Error, Critical write one line each, bucketed by the
// severity vocabulary internal/logsx's stats endpoint recognizes:
// DEBUG, INFO, WARNING, ERROR, CRITICAL.
func (s *Sink) Debug(msg string, fields ...any)    { s.write("DEBUG", msg, fields) }
func (s *Sink) Info(msg string, fields ...any)     { s.write("INFO", msg, fields) }
func (s *Sink) Warning(msg string, fields ...any)  { s.write("WARNING", msg, fields) }
func (s *Sink) Error(msg string, fields ...any)    { s.write("ERROR", msg, fields) }
func (s *Sink) Critical(msg string, fields ...any) { s.write("CRITICAL", msg, fields) }

func (s *Sink) write(severity, msg string, fields []any) {
	ev := s.logger.Log()
	for i := 0; i+1 < len(fields); i += 2 {
		key, _ := fields[i].(string)
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(severity + ": " + msg)
}

// NewOperationalLogger returns the process-wide slog.Logger used for
// ordinary operational messages (the teacher's own style: top-level
// slog.Info/Warn calls with key-value pairs, no custom wrapper).
func NewOperationalLogger(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
