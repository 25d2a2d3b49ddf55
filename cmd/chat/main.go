package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	applog "github.com/vovakirdan/wirechat-client/internal/log"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Single-room real-time chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ./wirechat.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newConnectCmd(&flags), newRelayCmd(&flags))
	return root
}

func newConnectCmd(flags *globalFlags) *cobra.Command {
	var endpoint, author string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join the room (type /name NAME, /reconnect, /quit)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, flags, os.Stderr)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("endpoint") {
				cfg.Endpoint = endpoint
			}
			if cmd.Flags().Changed("author") {
				cfg.Author = author
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client, err := app.NewClient(cfg, os.Stdin, os.Stdout, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "relay endpoint, e.g. ws://localhost:8080/chatHub")
	cmd.Flags().StringVar(&author, "author", "", "name shown next to your messages")
	return cmd
}

func newRelayCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the development relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, flags, os.Stdout)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Relay.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.NewRelay(cfg.Relay, logger).Run(ctx); err != nil {
				return fmt.Errorf("relay exited with error: %w", err)
			}
			logger.Info().Msg("relay stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

// load reads configuration and builds the logger. The --log-level flag wins over the file.
func load(cmd *cobra.Command, flags *globalFlags, logOut *os.File) (config.Config, *zerolog.Logger, error) {
	bootstrap := applog.NewWithWriter(flags.logLevel, logOut)

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}

	logger := applog.NewWithWriter(cfg.LogLevel, logOut)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}
