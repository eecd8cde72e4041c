package testsupport

import (
	"path/filepath"
	"testing"

	"journaltail/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose sincedb and outputs live in a per-test
// temp directory. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Sincedb.Path = filepath.Join(base, ".sincedb_journal")
	cfgVal.Sincedb.WriteInterval = 1
	cfgVal.Journal.ThisBoot = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithSeekTo sets the fresh-start position.
func WithSeekTo(seekTo string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.SeekTo = seekTo
	}
}

// WithThisBoot toggles the current-boot restriction.
func WithThisBoot(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.ThisBoot = enabled
	}
}

// WithFilter adds a fresh-start field filter.
func WithFilter(field, value string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Filter[field] = value
	}
}

// WithPrettyKeys enables readable field names.
func WithPrettyKeys() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.PrettyKeys = true
	}
}

// WithFileOutput writes records to a file named name inside the base directory.
func WithFileOutput(name, compress string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Kind = config.OutputFile
		b.cfg.Output.Path = filepath.Join(b.baseDir, name)
		b.cfg.Output.Compress = compress
	}
}

// WithSQLiteOutput archives records in a database inside the base directory.
func WithSQLiteOutput() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Kind = config.OutputSQLite
		b.cfg.Output.Path = filepath.Join(b.baseDir, "records.db")
	}
}

// WithAPIBind enables the status API on addr.
func WithAPIBind(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Bind = addr
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Sincedb.Path)
}
