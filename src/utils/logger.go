package utils

import (
	"strings"

	logger "github.com/sirupsen/logrus"
)

// SetupLogger applies LOG_LEVEL and LOG_FORMAT (text|json) to the global logger.
func SetupLogger() {
	config := GetConfig()

	level, err := logger.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}
