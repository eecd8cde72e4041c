package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateSincedb(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateJournal() error {
	switch c.Journal.Flags {
	case 0, 1, 2, 4:
	default:
		return fmt.Errorf("journal.flags must be one of 0, 1, 2, 4 (got %d)", c.Journal.Flags)
	}
	switch c.Journal.SeekTo {
	case SeekHead, SeekTail:
	default:
		return fmt.Errorf("journal.seekto must be %q or %q (got %q)", SeekHead, SeekTail, c.Journal.SeekTo)
	}
	if c.Journal.WaitTimeout < 0 {
		return errors.New("journal.wait_timeout must be positive")
	}
	for field := range c.Journal.Filter {
		if strings.TrimSpace(field) == "" || strings.Contains(field, "=") {
			return fmt.Errorf("journal.filter: invalid field name %q", field)
		}
	}
	return nil
}

func (c *Config) validateSincedb() error {
	if strings.TrimSpace(c.Sincedb.Path) == "" {
		return ErrNoSincedbPath
	}
	if c.Sincedb.WriteInterval <= 0 {
		return errors.New("sincedb.write_interval must be positive")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Kind {
	case OutputStdout:
	case OutputFile, OutputSQLite:
		if c.Output.Path == "" {
			return fmt.Errorf("output.path is required for output kind %q", c.Output.Kind)
		}
	default:
		return fmt.Errorf("output.kind must be one of stdout, file, sqlite (got %q)", c.Output.Kind)
	}
	if c.Output.Tee && c.Output.Kind == OutputStdout {
		return errors.New("output.tee applies only to output kinds \"file\" and \"sqlite\"")
	}
	switch c.Output.Compress {
	case CompressNone:
	case CompressZstd:
		if c.Output.Kind != OutputFile {
			return errors.New("output.compress applies only to output kind \"file\"")
		}
	default:
		return fmt.Errorf("output.compress must be %q or %q (got %q)", CompressNone, CompressZstd, c.Output.Compress)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
