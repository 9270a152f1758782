package logging

import (
	"bytes"
	"os"

	"github.com/charmbracelet/log"
)

// New builds the application logger. Setting DEBUG=1 enables debug level
// and caller reporting.
func New() *log.Logger {
	if os.Getenv("DEBUG") == "1" {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "filedrop",
		})
		logger.SetLevel(log.DebugLevel)
		return logger
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "filedrop",
	})
	logger.SetLevel(log.InfoLevel)
	return logger
}

// NewTestLogger returns a logger writing into a buffer so tests can assert
// on emitted records.
func NewTestLogger() (*log.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := log.New(buf)
	logger.SetLevel(log.DebugLevel)
	return logger, buf
}
