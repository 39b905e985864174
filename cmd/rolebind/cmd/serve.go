package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/core/api"
	"github.com/solatis/rolebind/internal/core/auth"
	"github.com/solatis/rolebind/internal/core/config"
	"github.com/solatis/rolebind/internal/core/db"
	"github.com/solatis/rolebind/internal/core/server"
	"github.com/solatis/rolebind/internal/core/telemetry"
	"github.com/solatis/rolebind/internal/resolve"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC binding service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", "", "metrics and health listen address (empty keeps the config value)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if cmd.Flags().Changed("metrics-addr") {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		cfg.MetricsAddr = addr
	}

	database, queries, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RequireMigration(database, db.LatestMigration); err != nil {
		if errors.Is(err, db.ErrMigrationPending) {
			return fmt.Errorf("migration %s not applied - run 'rolebind migrate up' first", db.LatestMigration)
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}

	authenticator := auth.NewAuthenticator(secrets, queries, server.PublicMethods()...)
	engine := resolve.NewEngine(cfg.Engine.ResolveConfig(), logger)
	metrics := telemetry.New()

	service, err := api.NewBindingService(queries, engine, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	grpcServer.SetReadyCheck(database.PingContext)

	logger.Info("starting rolebind binding service",
		"version", Version, "host", cfg.Host, "port", cfg.Port, "metrics_addr", cfg.MetricsAddr)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
