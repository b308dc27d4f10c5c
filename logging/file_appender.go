package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for NewFileAppender.
const (
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3
)

// FileAppender writes console formatted lines to a file that is rotated once it grows past
// MaxSizeMB. Rotated files are gzip compressed.
type FileAppender struct {
	Appender
	out *lumberjack.Logger
}

// NewFileAppender creates an appender writing to filename. Zero sizes or backups select the
// defaults.
func NewFileAppender(filename string, maxSizeMB, maxBackups int) *FileAppender {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxLogSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxLogBackups
	}
	out := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	return &FileAppender{Appender: NewWriterAppender(out), out: out}
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.out.Close()
}
