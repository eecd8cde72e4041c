package config

import "time"

const (
	defaultSeekTo        = SeekTail
	defaultThisBoot      = true
	defaultWaitTimeout   = 1
	defaultWriteInterval = 15
	defaultOutputKind    = OutputStdout
	defaultCompression   = CompressNone
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	sincedbFileName = ".sincedb_journal"
)

// Seek positions for a fresh start.
const (
	SeekHead = "head"
	SeekTail = "tail"
)

// Output kinds.
const (
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputSQLite = "sqlite"
)

// Compression modes for the file output.
const (
	CompressNone = "none"
	CompressZstd = "zstd"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Journal: Journal{
			SeekTo:      defaultSeekTo,
			ThisBoot:    defaultThisBoot,
			WaitTimeout: defaultWaitTimeout,
			Filter:      map[string]string{},
		},
		Sincedb: Sincedb{
			WriteInterval: defaultWriteInterval,
		},
		Output: Output{
			Kind:     defaultOutputKind,
			Compress: defaultCompression,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// WaitTimeoutDuration returns the journal wait timeout as a duration.
func (c *Config) WaitTimeoutDuration() time.Duration {
	return time.Duration(c.Journal.WaitTimeout) * time.Second
}

// WriteIntervalDuration returns the sincedb checkpoint interval as a duration.
func (c *Config) WriteIntervalDuration() time.Duration {
	return time.Duration(c.Sincedb.WriteInterval) * time.Second
}
