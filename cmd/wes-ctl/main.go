package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wes/internal/ipc"
)

const requestTimeout = 3 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wes-ctl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var socket string

	root := &cobra.Command{
		Use:           "wes-ctl",
		Short:         "Control a running wes-daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socket, "socket", ipc.DefaultSocketPath, "daemon control socket")

	root.AddCommand(
		&cobra.Command{
			Use:   "trigger",
			Short: "Simulate a presence in front of the sensor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := send(cmd.Context(), socket, ipc.CmdTrigger)
				return err
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Drop the cached word and return to idle",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := send(cmd.Context(), socket, ipc.CmdReset)
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current engine snapshot as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reply, err := send(cmd.Context(), socket, ipc.CmdStatus)
				if err != nil {
					return err
				}
				var out bytes.Buffer
				if err := json.Indent(&out, reply.Snapshot, "", "  "); err != nil {
					return fmt.Errorf("decode snapshot: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.String())
				return nil
			},
		},
	)
	return root
}

func send(ctx context.Context, socket, cmd string) (ipc.ControlReply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reply, err := ipc.SendCommand(ctx, socket, cmd)
	if err != nil && reply.Error == "" {
		return reply, fmt.Errorf("wes-daemon not running: %w", err)
	}
	return reply, err
}
