package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the root logger. The daemon passes the log file under the data
// directory; the CLI and tests pass os.Stderr.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return logger
}
