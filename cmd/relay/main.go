package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relay/internal/config"
	"relay/internal/constants"
	"relay/internal/dispatch"
	"relay/internal/filtering"
	"relay/internal/logger"
	"relay/internal/routing"
	"relay/internal/transport/telegram"
	"relay/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Telegram channel relay",
		Long:          "Relay copies messages from source chats and topics to configured targets",
		RunE:          serveCmd().RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(mappingsCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.NewEarlyLog().Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			return nil, errors.New("config file is required. Use --config flag or CONFIG_FILE environment variable")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting relay", "version", version)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				if serr := app.Shutdown(context.Background()); serr != nil {
					earlyLog.Warn("Shutdown after failed init: %v", serr)
				}
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			runErr := app.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.ErrorwCtx(shutdownCtx, "Shutdown failed", "error", err)
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.ErrorwCtx(ctx, "Relay stopped with error", "error", runErr)
				return runErr
			}
			log.InfowCtx(ctx, "Relay shutdown complete")
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file, including filter rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer log.Sync()

			filter, err := filtering.NewService(cfg.Filtering, log)
			if err != nil {
				return err
			}

			index := routing.Build(routing.FromConfig(cfg.Mappings))
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d mappings, %d sources, %d filter rules\n",
				index.Len(), len(index.Sources()), filter.RuleCount())
			return nil
		},
	}
}

func mappingsCmd() *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Print the routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer log.Sync()

			var names *dispatch.NameCache
			if resolve {
				client, err := telegram.New(cfg.Telegram, log)
				if err != nil {
					return err
				}
				defer client.Close()
				names = dispatch.NewNameCache(client, log)
			}

			return printMappings(cmd.Context(), cmd.OutOrStdout(), routing.FromConfig(cfg.Mappings), names)
		},
	}

	cmd.Flags().BoolVar(&resolve, "resolve", false, "Resolve chat names through the Bot API")
	return cmd
}
