package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:   "partyroom",
		Short: "Realtime party game room server",
		Long: `partyroom hosts short-lived game rooms over WebSocket.

Players create a room, share its five digit code, and keep names, avatars,
phases, scores and chat in sync with everyone else in the room.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; a broken one is not.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
		RunE:         serve.RunE,
		SilenceUsage: true,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newSmokeCmd())
	rootCmd.AddCommand(newClientCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
