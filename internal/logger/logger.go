package logger

import (
	"eksiblock/internal/config"
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	zerologger zerolog.Logger
)

type logWrapper struct {
	zerolog.Logger
}

func (l logWrapper) Write(p []byte) (n int, err error) {
	n = len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	l.Info().Msg(string(p))
	return
}

func InitializeLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if config.IsDevMode() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(config.GetConfig().APP.Level())
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFormatUnix}
		zerologger = zerolog.New(output)
	} else {
		zerologger = zerolog.New(os.Stdout)
	}

	zerologger = zerologger.With().Timestamp().Caller().Logger()

	log.Logger = zerologger

	stdlog.SetFlags(0)
	stdlog.SetOutput(logWrapper{zerologger})
}

// BadgerLogger adapts zerolog to badger's logger interface.
type BadgerLogger struct {
	zerolog.Logger
}

func NewBadgerLogger(l zerolog.Logger) *BadgerLogger {
	return &BadgerLogger{l.With().Str("component", "badger").Logger()}
}

func (b *BadgerLogger) Errorf(format string, args ...interface{}) {
	b.Error().Msg(trim(format, args...))
}

func (b *BadgerLogger) Warningf(format string, args ...interface{}) {
	b.Warn().Msg(trim(format, args...))
}

func (b *BadgerLogger) Infof(format string, args ...interface{}) {
	b.Debug().Msg(trim(format, args...))
}

func (b *BadgerLogger) Debugf(format string, args ...interface{}) {
	b.Trace().Msg(trim(format, args...))
}

func trim(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
