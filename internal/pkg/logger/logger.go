package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Development environments get a
// console writer at debug level; everything else logs JSON at info level.
func Setup(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if env == "" || env == "dev" || env == "local" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
}
