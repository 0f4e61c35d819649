package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/logkv/internal/cmd/client"
	serverrun "github.com/rzbill/logkv/internal/cmd/server"
	cfgpkg "github.com/rzbill/logkv/internal/config"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var configPath string
	loadConfig := func() (cfgpkg.Config, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfgpkg.FromEnv(&cfg)
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:           "logkv",
		Short:         "logkv: a key-value store materialized from a commit log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LOGKV_CONFIG"), "Config file (.json, .yaml or .yml)")

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a logkv node (log reader, local store and ops HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.DataDir, _ = flags.GetString("data-dir")
			}
			if flags.Changed("ops") {
				cfg.OpsAddr, _ = flags.GetString("ops")
			}
			if flags.Changed("grpc") {
				cfg.GRPCAddr, _ = flags.GetString("grpc")
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.Logging.Format, _ = flags.GetString("log-format")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("ops", "", "Ops HTTP listen address for /healthz and /metrics (empty disables)")
	serverStartCmd.Flags().String("grpc", "", "gRPC listen address for the grpc.health.v1 service (empty disables)")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewLogCommand(loadConfig))
	rootCmd.AddCommand(clientcmd.NewTopicCommand(loadConfig))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logkv %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		logger := logpkg.NewLogger(logpkg.WithFormat("text"))
		logger.Error("command failed", logpkg.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
