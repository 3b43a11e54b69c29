package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fedcat/internal/api"
	"fedcat/internal/config"
	"fedcat/internal/connector"
	"fedcat/internal/middleware"
	"fedcat/internal/spill"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connector calls over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()
			return serve(ctx, cfg, opts.build, logger)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides listen_addr)")
	return cmd
}

// serve builds the handler, probes the spill root when asked to, and runs
// the HTTP server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, build buildFunc, logger *slog.Logger) error {
	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "warning", w)
	}
	logger.Info("configuration loaded", "source_type", cfg.SourceType, "options", cfg.RedactedOptions())

	h, err := build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build connector: %w", err)
	}

	if cfg.Spill.Probe {
		if err := probeSpill(ctx, cfg); err != nil {
			return err
		}
		logger.Info("spill root reachable", "bucket", cfg.Spill.Bucket)
	}

	validator, err := tokenValidator(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	if validator != nil {
		logger.Info("API authentication enabled", "jwks", cfg.Auth.JWKSURL != "")
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewServer(h, logger).Routes(ctx, api.Options{
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
			},
			CORSOrigins: cfg.CORSAllowedOrigins,
			Auth:        validator,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// tokenValidator selects the bearer token check for the API, or nil when
// authentication is off.
func tokenValidator(ctx context.Context, auth config.AuthConfig) (middleware.TokenValidator, error) {
	switch {
	case auth.JWTSecret != "":
		v, err := middleware.NewHS256Validator(auth.JWTSecret, auth.Issuer, auth.Audience)
		if err != nil {
			return nil, err
		}
		return v, nil
	case auth.JWKSURL != "":
		return middleware.NewJWKSValidator(ctx, auth.JWKSURL, auth.Issuer, auth.Audience), nil
	default:
		return nil, nil
	}
}

// probeSpill checks that the configured spill root is reachable.
func probeSpill(ctx context.Context, cfg *config.Config) error {
	root, err := spill.ParseRoot(cfg.Spill.Bucket, cfg.Spill.Prefix)
	if err != nil {
		return err
	}
	awsCfg, err := connector.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	prober, err := spill.NewProber(ctx, root, awsCfg)
	if err != nil {
		return fmt.Errorf("spill probe: %w", err)
	}
	if err := prober.Probe(ctx); err != nil {
		return fmt.Errorf("spill probe %s: %w", root.URI(), err)
	}
	return nil
}
