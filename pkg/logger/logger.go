package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Interface interface {
	Debug(message interface{}, args ...interface{})
	Info(message string, args ...interface{})
	Warn(message string, args ...interface{})
	Error(message interface{}, args ...interface{})
	Fatal(message interface{}, args ...interface{})
}

type Logger struct {
	logger *zerolog.Logger
}

var _ Interface = (*Logger)(nil)

func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	var l zerolog.Level

	switch strings.ToLower(level) {
	case "error":
		l = zerolog.ErrorLevel
	case "warn":
		l = zerolog.WarnLevel
	case "info":
		l = zerolog.InfoLevel
	case "debug":
		l = zerolog.DebugLevel
	default:
		l = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(l).With().Timestamp().Logger()

	return &Logger{logger: &logger}
}

// Nop discards everything, used by tests.
func Nop() *Logger {
	logger := zerolog.Nop()

	return &Logger{logger: &logger}
}

func (l *Logger) Debug(message interface{}, args ...interface{}) {
	l.msg(l.logger.Debug(), message, args...)
}

func (l *Logger) Info(message string, args ...interface{}) {
	l.msg(l.logger.Info(), message, args...)
}

func (l *Logger) Warn(message string, args ...interface{}) {
	l.msg(l.logger.Warn(), message, args...)
}

func (l *Logger) Error(message interface{}, args ...interface{}) {
	l.msg(l.logger.Error(), message, args...)
}

func (l *Logger) Fatal(message interface{}, args ...interface{}) {
	l.msg(l.logger.Fatal(), message, args...)

	os.Exit(1)
}

// msg: для error первый строковый аргумент - место вызова, остальные - его аргументы.
func (l *Logger) msg(ev *zerolog.Event, message interface{}, args ...interface{}) {
	switch m := message.(type) {
	case error:
		ev = ev.Err(m)
		if len(args) > 0 {
			if where, ok := args[0].(string); ok {
				ev.Msgf(where, args[1:]...)

				return
			}
		}
		ev.Send()
	case string:
		if len(args) == 0 {
			ev.Msg(m)

			return
		}
		ev.Msgf(m, args...)
	default:
		ev.Msg(fmt.Sprintf("message %v has unknown type %T", message, message))
	}
}
