package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"journaltail/internal/logging"
	"journaltail/internal/sincedb"
)

func newCursorCommand(ctx *commandContext) *cobra.Command {
	cursorCmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or change the persisted journal cursor",
	}

	cursorCmd.AddCommand(newCursorShowCommand(ctx))
	cursorCmd.AddCommand(newCursorSetCommand(ctx))
	cursorCmd.AddCommand(newCursorResetCommand(ctx))
	return cursorCmd
}

func newCursorShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cursor stored in the sincedb",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cursor, err := sincedb.ReadFile(cfg.Sincedb.Path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintf(out, "No sincedb at %s; the next run starts from %s\n", cfg.Sincedb.Path, cfg.Journal.SeekTo)
				return nil
			case err != nil:
				return err
			case cursor.IsEmpty():
				fmt.Fprintf(out, "Sincedb %s is empty; the next run starts from %s\n", cfg.Sincedb.Path, cfg.Journal.SeekTo)
				return nil
			}
			fmt.Fprintln(out, string(cursor))
			return nil
		},
	}
}

func newCursorSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <cursor>",
		Short: "Overwrite the persisted cursor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor := sincedb.Cursor(strings.TrimSpace(args[0]))
			if cursor.IsEmpty() {
				return fmt.Errorf("cursor must not be empty; use `journaltail cursor reset` to clear it")
			}
			return withStore(ctx, func(store *sincedb.Store) error {
				store.Advance(cursor)
				if err := store.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cursor written to %s\n", store.Path())
				return nil
			})
		},
	}
}

func newCursorResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the persisted cursor so the next run starts fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *sincedb.Store) error {
				if err := store.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cursor cleared at %s\n", store.Path())
				return nil
			})
		},
	}
}

func withStore(ctx *commandContext, fn func(*sincedb.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := sincedb.Open(cfg.Sincedb.Path, logging.NewNop())
	if err != nil {
		if errors.Is(err, sincedb.ErrLocked) {
			return fmt.Errorf("%w; stop the running tailer first", err)
		}
		return err
	}
	defer store.Close()
	return fn(store)
}
