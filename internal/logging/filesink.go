package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/adbfb/adbfb/internal/constants"
)

// FileSink is the diagnostic log file. It is append-only and rotated by size.
// Every logical line read from an adb process ends up here at debug level.
type FileSink struct {
	mu     sync.Mutex
	file   *lumberjack.Logger
	writer io.Writer
	path   string
}

// NewFileSink opens (or creates) the diagnostic log at path.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    constants.LogMaxSizeMB, // MB
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays, // days
		Compress:   true,
	}

	return &FileSink{
		file: file,
		// Plain text: timestamp, level, message, fields.
		writer: zerolog.ConsoleWriter{
			Out:        file,
			NoColor:    true,
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		path: path,
	}, nil
}

// Write implements io.Writer for zerolog.
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Write(p)
}

// Path returns the log file location.
func (s *FileSink) Path() string {
	return s.path
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
