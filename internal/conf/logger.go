// Package conf provides configuration management for birdnet-listener.
package conf

import "github.com/tphakala/birdnet-listener/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// It is fetched from the global logger each time since the central logger
// is installed after configuration has been loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

// LoggingConfig converts the logging settings into the logger's own config type.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	fileLevel := s.Logging.File.Level
	if fileLevel == "" {
		fileLevel = level
	}

	return &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Logging.Timezone,
		Console: &logger.ConsoleOutput{
			Enabled: s.Logging.Console,
			Level:   level,
		},
		FileOutput: &logger.FileOutput{
			Enabled: s.Logging.File.Enabled,
			Path:    s.Logging.File.Path,
			Level:   fileLevel,
		},
		ModuleLevels: s.Logging.ModuleLevels,
	}
}
