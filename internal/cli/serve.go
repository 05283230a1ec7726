package cli

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/partyroom-server/internal/app"
	"github.com/vovakirdan/partyroom-server/internal/config"
	"github.com/vovakirdan/partyroom-server/internal/log"
)

type serveFlags struct {
	configPath string
	overrides  config.Config
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file path (env: PARTYROOM_CONFIG_DEFAULT_PATH for the directory)")
	cmd.Flags().StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address (env: PARTYROOM_ADDR, PORT)")
	cmd.Flags().StringVar(&flags.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.overrides.LogFormat, "log-format", "", "log format: console, json")
	cmd.Flags().DurationVar(&flags.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	return cmd
}

func runServe(cmd *cobra.Command, flags serveFlags) error {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(flags.overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting partyroom server")

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(cmd.Context()); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
