package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	if err := c.normalizeSincedb(); err != nil {
		return err
	}
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	return c.normalizeLogging()
}

func (c *Config) normalizeJournal() error {
	var err error
	if c.Journal.Path, err = expandPath(strings.TrimSpace(c.Journal.Path)); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.SeekTo = strings.ToLower(strings.TrimSpace(c.Journal.SeekTo))
	if c.Journal.SeekTo == "" {
		c.Journal.SeekTo = defaultSeekTo
	}
	if c.Journal.WaitTimeout == 0 {
		c.Journal.WaitTimeout = defaultWaitTimeout
	}
	if c.Journal.Filter == nil {
		c.Journal.Filter = map[string]string{}
	}
	return nil
}

func (c *Config) normalizeSincedb() error {
	path := strings.TrimSpace(c.Sincedb.Path)
	if path == "" {
		resolved, err := DefaultSincedbPath()
		if err != nil {
			return err
		}
		path = resolved
	}
	var err error
	if c.Sincedb.Path, err = expandPath(path); err != nil {
		return fmt.Errorf("sincedb.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeOutput() error {
	c.Output.Kind = strings.ToLower(strings.TrimSpace(c.Output.Kind))
	if c.Output.Kind == "" {
		c.Output.Kind = defaultOutputKind
	}
	c.Output.Compress = strings.ToLower(strings.TrimSpace(c.Output.Compress))
	if c.Output.Compress == "" {
		c.Output.Compress = defaultCompression
	}
	var err error
	if c.Output.Path, err = expandPath(strings.TrimSpace(c.Output.Path)); err != nil {
		return fmt.Errorf("output.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
