package logger

import (
	"flag"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Log is an instance of the global logrus.Logger
var Log *logrus.Logger

var initializeLogger sync.Once

func buildFormatter(format string) logrus.Formatter {
	switch strings.ToUpper(format) {
	case "TEXT":
		return &logrus.TextFormatter{FullTimestamp: true}
	default:
		return &logrus.JSONFormatter{}
	}
}

// ParseLevel maps a configured level name onto a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return logrus.TraceLevel
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// InitLogger initializes the logger instance
func InitLogger() {
	initializeLogger.Do(func() {
		logconfig := viper.New()
		logconfig.SetDefault("LOG_LEVEL", "INFO")
		logconfig.SetDefault("LOG_FORMAT", "json")
		logconfig.SetEnvPrefix("ENERGOSYNC")
		logconfig.AutomaticEnv()

		logLevel := ParseLevel(logconfig.GetString("LOG_LEVEL"))
		if flag.Lookup("test.v") != nil {
			logLevel = logrus.FatalLevel
		}

		Log = &logrus.Logger{
			Out:       os.Stdout,
			Level:     logLevel,
			Formatter: buildFormatter(logconfig.GetString("LOG_FORMAT")),
			Hooks:     make(logrus.LevelHooks),
		}
	})
}

// Configure applies level and format from the loaded configuration file.
func Configure(level, format string) {
	InitLogger()
	if flag.Lookup("test.v") == nil {
		Log.SetLevel(ParseLevel(level))
	}
	Log.SetFormatter(buildFormatter(format))
}

// Mask hides the middle of an identifier, keeping the first and last two characters.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
