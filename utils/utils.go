package utils

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLog returns a logger writing to a rotated file named after the component.
func NewLog(dir, name string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&lumberjack.Logger{
		Filename:   fmt.Sprintf("%s%s.log", dir, name),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	})
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	return logger
}

// SetupLog redirects the standard logrus logger, used by every component, to the file log.
func SetupLog(dir, name string, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger := NewLog(dir, name)
	logrus.SetOutput(logger.Out)
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(lvl)
	return nil
}
