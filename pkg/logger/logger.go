package logger

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

const prefixLen = 12

var fileHook *rotatingFileHook

// Init configures the root logger. level is the count of -v flags:
// 0 = info, 1 = debug, 2+ = trace. When logFilePath is non-empty, all
// entries are also written there with rotation.
func Init(level int, logFilePath string) {
	logrus.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceFormatting: true,
	})

	// diagnostics go to stdout, not logrus's default stderr
	logrus.SetOutput(os.Stdout)

	switch {
	case level == 1:
		logrus.SetLevel(logrus.DebugLevel)
	case level > 1:
		logrus.SetLevel(logrus.TraceLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if logFilePath != "" {
		fileHook = &rotatingFileHook{
			writer: &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    25,
				MaxBackups: 3,
				MaxAge:     30,
			},
			formatter: &prefixed.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
				DisableColors:   true,
				ForceFormatting: true,
			},
		}
		logrus.AddHook(fileHook)
	}
}

// GetLogger returns a named entry whose prefix shows up in every line.
func GetLogger(prefix string) *logrus.Entry {
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}

	return logrus.WithField("prefix", prefix)
}

type rotatingFileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *rotatingFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *rotatingFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(line)
	return err
}
