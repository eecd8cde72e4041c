package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"journaltail/internal/config"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(filepath.Dir(cfg.Sincedb.Path), "journaltail.toml")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	defer file.Close()
	if err := config.Encode(file, cfg); err != nil {
		t.Fatalf("encode config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
