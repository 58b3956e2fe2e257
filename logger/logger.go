/*
Package logger wraps zerolog behind the small surface the rest of the client
uses. Every component receives a *Logger and derives scoped sub-loggers from
it, so log lines can always be traced back to the layer that emitted them.
*/
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel zerolog.Level

const (
	Trace    = LogLevel(zerolog.TraceLevel)
	Debug    = LogLevel(zerolog.DebugLevel)
	Info     = LogLevel(zerolog.InfoLevel)
	Error    = LogLevel(zerolog.ErrorLevel)
	Disabled = LogLevel(zerolog.Disabled)
)

func ToLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return Trace
	case "debug":
		return Debug
	case "info":
		return Info
	case "error":
		return Error
	case "disabled":
		return Disabled
	default:
		return Debug
	}
}

type Config struct {
	// Writers that receive human-readable console output
	ConsoleWriters []io.Writer

	// If set, logs are also written to this file with rotation
	FilePath string

	// Defaults to Debug
	LogLevel LogLevel
}

type Logger struct {
	logger zerolog.Logger
}

func New(config *Config) (*Logger, error) {
	// zerolog by default appends to any existing global context, make sure
	// our timestamps use a sane format
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), os.ModePerm); err != nil {
			return nil, err
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
		})
	}

	for _, consoleWriter := range config.ConsoleWriters {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        consoleWriter,
			TimeFormat: time.RFC3339,
		})
	}

	// A logger with nowhere to write is still a valid logger
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.Level(config.LogLevel)).
		With().
		Timestamp().
		Logger()

	return &Logger{logger: logger}, nil
}

func (l *Logger) AddClientVersion(version string) {
	l.logger = l.logger.With().Str("clientVersion", version).Logger()
}

func (l *Logger) AddClientId(clientId string) {
	l.logger = l.logger.With().Str("clientId", clientId).Logger()
}

func (l *Logger) GetComponentLogger(component string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

func (l *Logger) Tracef(format string, a ...interface{}) {
	l.logger.Trace().Msgf(format, a...)
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.logger.Debug().Msgf(format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.logger.Info().Msgf(format, a...)
}

func (l *Logger) Error(err error) {
	l.logger.Error().Msg(err.Error())
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.logger.Error().Msgf(format, a...)
}
