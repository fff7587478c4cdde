package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/signhand/api"
	"github.com/jmcleod/signhand/internal/util"
	"github.com/jmcleod/signhand/signing"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the signing service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		applyServerFlags(cmd, &cfg)
		if err := cfg.validate(); err != nil {
			return err
		}
		logger := newLogger(cfg.Log, os.Stderr)

		if cfg.Signer.Command == "" {
			return errors.New("signer.command is required to run the server")
		}
		if os.Getenv(cfg.Auth.SecretEnv) == "" {
			return fmt.Errorf("%s must hold the token signing secret", cfg.Auth.SecretEnv)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		repo, closeRepo, err := openRepository(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		svc, err := buildServices(cfg, repo, logger)
		if err != nil {
			return err
		}

		apiOpts := []api.Option{
			api.WithLogger(logger),
			api.WithProfiles(svc.users),
		}
		if cfg.Auth.Issuer != "" {
			apiOpts = append(apiOpts, api.WithIssuer(cfg.Auth.Issuer))
		}
		a := api.New(svc.vault, svc.engine, svc.docs, api.EnvSecret(cfg.Auth.SecretEnv), apiOpts...)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/api/v1", a.Router())

		tlsConfig, err := serverTLSConfig(cfg)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      cfg.Signer.Timeout + 30*time.Second,
			IdleTimeout:       60 * time.Second,
		}

		var sweeper *signing.Sweeper
		if cfg.SweepInterval > 0 {
			sweeper = signing.NewSweeper(svc.engine, cfg.SweepInterval)
			sweeper.Start(ctx)
		}
		go a.RunMaintenance(ctx, time.Minute)

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		logger.Info("server started", "port", cfg.Port, "storage", cfg.Storage.Backend)

		var runErr error
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
		case runErr = <-done:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
		if sweeper != nil {
			sweeper.Stop()
		}
		svc.closeWebhooks(shutdownCtx)
		return runErr
	},
}

func serverTLSConfig(cfg Config) (*tls.Config, error) {
	var cert tls.Certificate
	var err error
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err = tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
	} else {
		cert, err = util.GenerateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		fmt.Println("Using self-signed runtime generated certificate for TLS")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// applyServerFlags copies explicitly set flags over the loaded config.
func applyServerFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("tls-cert") {
		cfg.TLSCert, _ = f.GetString("tls-cert")
	}
	if f.Changed("tls-key") {
		cfg.TLSKey, _ = f.GetString("tls-key")
	}
	if f.Changed("postgres-dsn") {
		cfg.Storage.Backend = "postgres"
		cfg.Storage.PostgresDSN, _ = f.GetString("postgres-dsn")
	}
	if f.Changed("signer") {
		cfg.Signer.Command, _ = f.GetString("signer")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntP("port", "p", 8443, "Port to listen on")
	serverCmd.Flags().String("data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().String("tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().String("tls-key", "", "Path to TLS key file")
	serverCmd.Flags().String("postgres-dsn", "", "Use PostgreSQL storage with this DSN")
	serverCmd.Flags().String("signer", "", "Path to the external signer command")
	serverCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().String("log-format", "json", "Log format (json, text)")
}
