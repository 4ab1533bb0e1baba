package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// newLogger returns a console logger writing to w at the named level.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	out := zerolog.ConsoleWriter{
		Out:         w,
		TimeFormat:  time.DateTime,
		FormatLevel: formatLevel,
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func formatLevel(i any) string {
	return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
}

// loggerFactory hands out zerolog loggers to the packages that log through
// pion/logging. The scope becomes a "scope" field.
type loggerFactory struct {
	base zerolog.Logger
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{log: f.base.With().Str("scope", scope).Logger()}
}

type scopedLogger struct {
	log zerolog.Logger
}

func (l *scopedLogger) Trace(msg string) { l.log.Trace().Msg(msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}
func (l *scopedLogger) Debug(msg string) { l.log.Debug().Msg(msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
func (l *scopedLogger) Info(msg string) { l.log.Info().Msg(msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}
func (l *scopedLogger) Warn(msg string) { l.log.Warn().Msg(msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}
func (l *scopedLogger) Error(msg string) { l.log.Error().Msg(msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}
