package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Init(env string) {
	InitWriter(env, os.Stdout)
}

// InitWriter 与 Init 相同，但允许测试替换输出目标。
func InitWriter(env string, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if env == "dev" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if env == "dev" {
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(cw).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "chatnow").Logger()
}
