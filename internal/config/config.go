package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Journal selects the journal source and the fresh-start position.
type Journal struct {
	Path        string            `toml:"path"`
	Flags       int               `toml:"flags"`
	SeekTo      string            `toml:"seekto"`
	ThisBoot    bool              `toml:"thisboot"`
	PrettyKeys  bool              `toml:"pretty_keys"`
	WaitTimeout int               `toml:"wait_timeout"`
	Filter      map[string]string `toml:"filter"`
}

// Sincedb locates the persisted cursor file and its checkpoint interval.
type Sincedb struct {
	Path          string `toml:"path"`
	WriteInterval int    `toml:"write_interval"`
}

// Output selects where records are delivered.
type Output struct {
	Kind     string `toml:"kind"`
	Path     string `toml:"path"`
	Compress string `toml:"compress"`
	// Tee also writes NDJSON to stdout when Kind is file or sqlite.
	Tee bool `toml:"tee"`
}

// API contains the status endpoint bind address. Empty disables it.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for journaltail.
//
// Configuration sections:
//   - Journal: source directory, flags, seek position, filter
//   - Sincedb: cursor file and write interval
//   - Output: record sink selection
//   - API: optional status endpoint
//   - Logging: log format, level, and optional file
type Config struct {
	Journal Journal `toml:"journal"`
	Sincedb Sincedb `toml:"sincedb"`
	Output  Output  `toml:"output"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
}

// ErrNoSincedbPath is returned when no sincedb path is configured and neither
// SINCEDB_DIR nor HOME is set.
var ErrNoSincedbPath = errors.New("sincedb.path is unset and neither SINCEDB_DIR nor HOME is defined")

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/journaltail/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := Decode(file, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Decode parses TOML from r into cfg, rejecting unknown keys.
func Decode(r io.Reader, cfg *Config) error {
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config: %s", strict.String())
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("journaltail.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// DefaultSincedbPath resolves the sincedb location from SINCEDB_DIR, then HOME.
func DefaultSincedbPath() (string, error) {
	for _, key := range []string{"SINCEDB_DIR", "HOME"} {
		if dir, ok := os.LookupEnv(key); ok && strings.TrimSpace(dir) != "" {
			return filepath.Join(strings.TrimSpace(dir), sincedbFileName), nil
		}
	}
	return "", ErrNoSincedbPath
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
