package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

// EnvFormat selects the log format. "json" selects NewProduction output.
const EnvFormat = "TOKENCTL_LOG_FORMAT"

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a logger writing to w based on the TOKENCTL_LOG_FORMAT
// environment variable. Verbose lowers the level from warn to debug.
func New(w io.Writer, verbose bool) zerolog.Logger {
	var l zerolog.Logger
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		l = NewProduction(w)
	} else {
		l = NewDevelopment(w)
	}
	if verbose {
		return l.Level(zerolog.DebugLevel)
	}
	return l.Level(zerolog.WarnLevel)
}

// NewDevelopment creates a console logger with colored levels.
func NewDevelopment(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         w,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a JSON logger with UNIX timestamps
func NewProduction(w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).With().Timestamp().Logger()
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return strings.ToUpper(fmt.Sprintf("%s", i))
	}
	switch ll {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorYellow)
	case "info":
		return colorize("INF", colorGreen)
	case "warn":
		return colorize("WRN", colorRed)
	case "error", "fatal", "panic":
		return colorize(strings.ToUpper(ll)[0:3], colorRed)
	default:
		if len(ll) > 3 {
			ll = ll[0:3]
		}
		return colorize(strings.ToUpper(ll), colorBold)
	}
}
