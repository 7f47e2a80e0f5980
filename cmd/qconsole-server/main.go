// qconsole-server is the backend-for-frontend for the Q Business
// troubleshooting and evaluation console. It brokers the browser SPA's calls
// to AWS (Q Business, CloudWatch Logs, S3, Bedrock, STS/SSO, Secrets Manager,
// DynamoDB), resolving per-session AWS credentials for every request.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/qbiz-tools/qconsole/internal/config"
	"github.com/qbiz-tools/qconsole/internal/credentials"
	"github.com/qbiz-tools/qconsole/internal/httpapi"
	"github.com/qbiz-tools/qconsole/internal/identity"
	"github.com/qbiz-tools/qconsole/internal/logging"
	"github.com/qbiz-tools/qconsole/internal/session"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "qconsole-server",
		Short:   "Q Business console backend",
		Version: version,
	}

	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			addr, _ := cmd.Flags().GetString("addr")
			logLevel, _ := cmd.Flags().GetString("log-level")

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := logging.New(cfg.LogLevel)

			ctx := cmd.Context()
			defaultCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
			if err != nil {
				return fmt.Errorf("loading default AWS config: %w", err)
			}

			factory := credentials.NewClientFactory(logger)

			var store session.Store
			switch cfg.StoreBackend {
			case "sqlite":
				sqliteStore, err := session.OpenSQLiteStore(cfg.SQLitePath, logger)
				if err != nil {
					return fmt.Errorf("opening sqlite session store: %w", err)
				}
				defer sqliteStore.Close()
				store = sqliteStore
				logger.Info().Str("path", cfg.SQLitePath).Msg("using sqlite session store")
			default:
				store = session.NewDynamoStore(factory.DynamoDB(defaultCfg), cfg.SessionsTable, logger)
				logger.Info().Str("table", cfg.SessionsTable).Msg("using dynamodb session store")
			}

			exchanger := identity.NewExchanger(
				factory.SSOOIDC(defaultCfg),
				factory.STS(defaultCfg),
				store,
				identity.Config{
					IdcApplicationARN: cfg.IdcApplicationARN,
					ExchangeRoleARN:   cfg.ExchangeRoleARN,
					AnonymousRoleARN:  cfg.AnonymousRoleARN,
				},
				logger,
			)

			cache := credentials.NewCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
			resolver := credentials.NewResolver(store, cache, defaultCfg, logger)

			server := httpapi.NewServer(cfg, logger, resolver, exchanger, httpapi.DefaultClients(factory))
			httpServer := &http.Server{
				Addr:    cfg.Addr,
				Handler: server.Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.Addr).Str("region", cfg.Region).Msg("console backend listening")
				errCh <- httpServer.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("server stopped: %w", err)
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Path to JSON config file (optional; QCONSOLE_* env vars override)")
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	return cmd
}
