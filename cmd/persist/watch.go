package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/webstorage"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print changes made to local storage by other processes",
		Long: `Print one JSON storage event per line whenever another process
changes the local storage file. Stops on Ctrl+C.

Examples:
  persist watch
  persist watch --dir ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags)
		},
	}
}

func runWatch(cmd *cobra.Command, flags *globalFlags) error {
	if flags.backend != backendLocal {
		return errors.New("P010").
			WithDetail("watch follows the local backend only").
			WithSuggestion("Run persist watch --backend local")
	}

	e, err := openEnv(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan webstorage.StorageEvent, 64)
	remove := e.window.AddStorageListener(func(ev webstorage.StorageEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	defer remove()

	info(cmd, "Watching %s", e.window.Dir())
	return printEvents(ctx, cmd, events)
}

func printEvents(ctx context.Context, cmd *cobra.Command, events <-chan webstorage.StorageEvent) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr())
			info(cmd, "Stopped watching")
			return nil
		case ev := <-events:
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
}
