package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const statusRequestTimeout = 5 * time.Second

// statusResponse mirrors the JSON served at /api/status.
type statusResponse struct {
	Running bool   `json:"running"`
	RunID   string `json:"run_id"`
	Plan    struct {
		State    string            `json:"state"`
		SeekTo   string            `json:"seekto"`
		Cursor   string            `json:"cursor"`
		Filter   map[string]string `json:"filter"`
		BootID   string            `json:"boot_id"`
		Position string            `json:"position"`
	} `json:"plan"`
	PlanDescription  string    `json:"plan_description"`
	CurrentCursor    string    `json:"current_cursor"`
	PersistedCursor  string    `json:"persisted_cursor"`
	RecordsDelivered uint64    `json:"records_delivered"`
	LastTimestamp    uint64    `json:"last_timestamp"`
	SincedbPath      string    `json:"sincedb_path"`
	StartedAt        time.Time `json:"started_at"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running tailer via its status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(address)
			if target == "" {
				target = cfg.API.Bind
			}
			if target == "" {
				return fmt.Errorf("api.bind is not configured; set it or pass --address")
			}
			status, err := fetchStatus(cmd.Context(), target)
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Status endpoint host:port (defaults to api.bind)")
	return cmd
}

func fetchStatus(ctx context.Context, address string) (*statusResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()

	url := "http://" + dialableAddress(address) + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to tailer at %s: %w; verify `journaltail run` is running", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// dialableAddress rewrites wildcard bind hosts to loopback.
func dialableAddress(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func renderStatus(out io.Writer, status *statusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Tailer", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("State", statusOK, "running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("State", statusWarn, "stopped", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Run ID", statusInfo, orDash(status.RunID), colorize))
	if !status.StartedAt.IsZero() {
		fmt.Fprintln(out, renderStatusLine("Started", statusInfo, status.StartedAt.Local().Format(time.RFC3339), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Plan", statusInfo, orDash(status.PlanDescription), colorize))
	fmt.Fprintln(out, renderStatusLine("Delivered", statusInfo, fmt.Sprintf("%d records", status.RecordsDelivered), colorize))
	if status.LastTimestamp > 0 {
		ts := time.UnixMicro(int64(status.LastTimestamp)).Local().Format(time.RFC3339)
		fmt.Fprintln(out, renderStatusLine("Last entry", statusInfo, ts, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Sincedb", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Path", statusInfo, orDash(status.SincedbPath), colorize))
	fmt.Fprintln(out, renderStatusLine("Current", statusInfo, orDash(status.CurrentCursor), colorize))
	kind := statusOK
	if status.CurrentCursor != status.PersistedCursor {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Persisted", kind, orDash(status.PersistedCursor), colorize))
}
