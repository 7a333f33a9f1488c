// Package logging builds the logrus logger shared by the client components.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/config"
)

// New returns a logger writing to w at the level configured in cfg.
func New(cfg *config.Config, w io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(cfg.LogLevel())
	if err != nil {
		level = logrus.WarnLevel
	}
	log.SetLevel(level)
	return logrus.NewEntry(log).WithField("app", config.AppName)
}

// NewFile returns a logger appending to the config dir log file, for when
// the terminal belongs to the TUI. The returned closer releases the file.
func NewFile(cfg *config.Config) (*logrus.Entry, io.Closer, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, nil, fmt.Errorf("logging: ensure dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return New(cfg, f), f, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *logrus.Entry) *logrus.Entry {
	if l == nil {
		return Discard()
	}
	return l
}
