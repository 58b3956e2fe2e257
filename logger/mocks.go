package logger

import (
	"io"
)

// MockLogger returns a trace-level logger writing to the given writer, which
// in suite tests is usually the ginkgo writer.
func MockLogger(writer io.Writer) *Logger {
	config := &Config{
		ConsoleWriters: []io.Writer{writer},
		LogLevel:       Trace,
	}

	if logger, err := New(config); err == nil {
		return logger
	}
	return nil
}
