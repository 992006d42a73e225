// Package app wires the storefront core, its backend client and the local API together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storefront/internal/admin"
	"github.com/abgdnv/storefront/internal/backend"
	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/client"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/order"
	"github.com/abgdnv/storefront/internal/payment"
	"github.com/abgdnv/storefront/internal/session"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/client/httpx"
	pkgconfig "github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const backendClientName = "storefront-backend"

type Dependencies struct {
	Session *session.Session
	Cart    *cart.Store
	Orders  *order.Flow
	Admin   *admin.Board
	API     *backend.API
	Catalog catalog.Service
	Checks  []rest.Check
	Logger  *slog.Logger
}

// Externals are the collaborators created by the caller.
type Externals struct {
	Decoder   auth.Decoder
	Persister session.Persister
	Publisher messaging.Publisher
	Checks    []rest.Check
}

// NewPersister picks the session store named in the configuration. rdb is only
// used by the redis store and may be nil otherwise.
func NewPersister(cfg pkgconfig.SessionConfig, rdb redis.Cmdable) (session.Persister, error) {
	switch cfg.Store {
	case pkgconfig.SessionStoreFile:
		return session.NewFilePersister(cfg.File), nil
	case pkgconfig.SessionStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("session store %q needs a redis client", cfg.Store)
		}
		return session.NewRedisPersister(rdb, cfg.Redis.Key), nil
	default:
		return session.NewMemoryPersister(), nil
	}
}

// SetupDependencies builds the core and restores any persisted session.
func SetupDependencies(ctx context.Context, cfg *config.Config, ext Externals, logger *slog.Logger) (*Dependencies, error) {
	sess := session.New(ext.Decoder, ext.Persister, logger)
	if err := sess.Restore(ctx); err != nil {
		logger.WarnContext(ctx, "Starting without a session", "error", err)
	}

	httpClient, err := httpx.NewClient(backendClientName, cfg.Backend, cfg.Resilience)
	if err != nil {
		return nil, err
	}
	api := backend.New(client.New(httpClient, cfg.Backend.BaseURL, sess, logger))

	var processor order.Processor
	if cfg.Payment.Enabled() {
		paymentClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Payment.Timeout,
		}
		processor = payment.NewProcessor(paymentClient, cfg.Payment, logger)
	} else {
		logger.WarnContext(ctx, "Payment processor is not configured, card payments are disabled")
	}

	cartStore := cart.NewStore(api, sess, logger)
	flow := order.NewFlow(api, cartStore, processor, ext.Publisher, cfg.Payment.Currency, logger)
	board := admin.NewBoard(api, logger)

	// logout, forced or not, resets every piece of per-user state
	sess.OnEnd(cartStore.Reset)
	sess.OnEnd(flow.Reset)
	sess.OnEnd(board.Reset)

	return &Dependencies{
		Session: sess,
		Cart:    cartStore,
		Orders:  flow,
		Admin:   board,
		API:     api,
		Catalog: catalog.NewService(api),
		Checks:  ext.Checks,
		Logger:  logger,
	}, nil
}

// SetupHttpHandler builds the local API with its middleware, probes and metrics.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "storefront")
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(rest.Services{
		Session: deps.Session,
		Auth:    deps.API,
		Cart:    deps.Cart,
		Orders:  deps.Orders,
		Admin:   deps.Admin,
		Catalog: deps.Catalog,
		Checks:  deps.Checks,
	}, deps.Logger)
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
}

// SetupHttpServer creates the local API server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}
