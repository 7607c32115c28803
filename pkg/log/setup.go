package log

import "github.com/sirupsen/logrus"

// NewLogger builds the application logger with the standard text format.
// An unparseable level falls back to info with a warning.
func NewLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)

	if levelStr != "" {
		level, err := logrus.ParseLevel(levelStr)
		if err != nil {
			logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}
