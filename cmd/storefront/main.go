package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/storefront/internal/app"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/abgdnv/storefront/pkg/messaging"
	natsclient "github.com/abgdnv/storefront/pkg/nats"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "storefront"
	startupTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run initializes the storefront, starts the HTTP and pprof servers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	// providers must be installed before the services create their instruments
	tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		logger.Error("error creating tracer provider", slog.Any("error", err))
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		logger.Error("error creating meter provider", slog.Any("error", err))
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	decoder, err := newDecoder(startupCtx, cfg)
	if err != nil {
		return err
	}

	var checks []rest.Check

	var rdb redis.Cmdable
	if cfg.Session.Store == pkgconfig.SessionStoreRedis {
		client, err := bootstrap.NewRedisClient(startupCtx, cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB, startupTimeout)
		if err != nil {
			return err
		}
		defer closeRedis(client, logger)
		rdb = client
		checks = append(checks, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	persister, err := app.NewPersister(cfg.Session, rdb)
	if err != nil {
		return err
	}

	publisher, nc, err := newPublisher(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
		checks = append(checks, func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats connection is %s", nc.Status())
			}
			return nil
		})
	}

	deps, err := app.SetupDependencies(ctx, cfg, app.Externals{
		Decoder:   decoder,
		Persister: persister,
		Publisher: publisher,
		Checks:    checks,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to set up storefront: %w", err)
	}
	httpServer := app.SetupHttpServer(deps, cfg)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Storefront listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.PProf.Enabled {
		pprofServer := server.NewPProfServer(cfg.PProf.Addr)
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	// gracefully shutdown telemetry providers
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down telemetry providers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return errors.Join(tracerProvider.Shutdown(shutdownCtx), meterProvider.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newDecoder verifies tokens against the IdP when one is configured.
func newDecoder(ctx context.Context, cfg *config.Config) (auth.Decoder, error) {
	if !cfg.IdP.Enabled() {
		return auth.InsecureDecoder{}, nil
	}
	verifier, err := auth.NewJWTVerifier(ctx, cfg.IdP)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}
	return verifier, nil
}

// newPublisher returns a JetStream publisher when NATS is configured and a
// logging one otherwise. The connection is nil in the latter case.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, *nats.Conn, error) {
	if !cfg.Nats.Enabled() {
		return messaging.NewLogPublisher(logger), nil, nil
	}
	nc, err := natsclient.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, messaging.OrdersStream, messaging.OrdersPlacedSubject); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Order events go to NATS", slog.String("stream", messaging.OrdersStream))
	return natsclient.NewNatsPublisher(js), nc, nil
}

func closeRedis(rdb *redis.Client, logger *slog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Error("Failed to close redis client", slog.String("error", err.Error()))
	}
}
