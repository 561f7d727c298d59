package logging

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "INSTRCTL_LOG_LEVEL"
	EnvLogTimestamp = "INSTRCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "INSTRCTL_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := zerolog.InfoLevel
		timestamp := true
		noColor := false
		if profile == ProfileTest {
			level = zerolog.DebugLevel
			timestamp = false
		}
		if v := os.Getenv(EnvLogLevel); v != "" {
			if parsed, err := zerolog.ParseLevel(v); err == nil {
				level = parsed
			}
		}
		if v := os.Getenv(EnvLogTimestamp); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				timestamp = parsed
			}
		}
		if v := os.Getenv(EnvLogNoColor); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				noColor = parsed
			}
		}

		zerolog.SetGlobalLevel(level)
		output := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		}
		ctx := zerolog.New(output).With()
		if timestamp {
			ctx = ctx.Timestamp()
		}
		log.Logger = ctx.Logger()
	})
}
