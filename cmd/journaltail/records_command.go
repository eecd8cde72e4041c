package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"journaltail/internal/config"
	"journaltail/internal/sink"
)

const recordMessageWidth = 80

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var path string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List records stored in the SQLite archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(path)
			if target == "" {
				if cfg.Output.Kind != config.OutputSQLite {
					return fmt.Errorf("output.kind is %q; pass --path to read an archive", cfg.Output.Kind)
				}
				target = cfg.Output.Path
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve archive path: %w", err)
			}

			archive, err := sink.OpenArchiveReadOnly(cmd.Context(), target)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no archive at %s; it is created by `journaltail run` with output.kind = \"sqlite\"", target)
			}
			if err != nil {
				return err
			}
			defer archive.Close()

			total, err := archive.Count(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "Archive is empty")
				return nil
			}
			lastCursor, err := archive.LastCursor(cmd.Context())
			if err != nil {
				return err
			}
			records, err := archive.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.Time().Local().Format(time.DateTime),
					orDash(rec.Host),
					truncate(rec.Message, recordMessageWidth),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Time", "Host", "Message"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Showing %d of %d records\n", len(records), total)
			fmt.Fprintf(out, "Last archived cursor: %s\n", lastCursor)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to list (0 for all)")
	cmd.Flags().StringVar(&path, "path", "", "Archive database path (defaults to output.path)")
	return cmd
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if width <= 0 || len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
