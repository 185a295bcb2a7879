package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ppastorf/doctor-who-sounds/internal/config"
)

// log stays silent unless the daemon points it at its log file. The hook
// host must never see output from client or play mode.
var log = newLogger(io.Discard)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	return l
}

// InitLogger initializes the logger with the configured log level
func InitLogger(out io.Writer, level string) {
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		parsedLevel = logrus.InfoLevel
	}
	log.SetLevel(parsedLevel)
}

// daemonLogFile returns the size-capped daemon log at path.
func daemonLogFile(path string, settings *config.Settings) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    settings.LogMaxSizeMB,
		MaxBackups: settings.LogMaxBackups,
	}
}
