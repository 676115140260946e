package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfeidau/feedgate/internal/clients"
	"github.com/wolfeidau/feedgate/internal/httputil"
	"github.com/wolfeidau/feedgate/internal/logger"
	"github.com/wolfeidau/feedgate/internal/platform"
	"github.com/wolfeidau/feedgate/internal/server"
	"github.com/wolfeidau/feedgate/internal/session"
	"github.com/wolfeidau/feedgate/internal/store"
	memorystore "github.com/wolfeidau/feedgate/internal/store/memory"
	postgresstore "github.com/wolfeidau/feedgate/internal/store/postgres"
	"github.com/wolfeidau/feedgate/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"FEEDGATE_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"FEEDGATE_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"FEEDGATE_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"*" env:"FEEDGATE_CORS_ORIGINS"`

	// Upstream platform configuration
	PlatformBaseURL string        `help:"base URL of the upstream platform API" required:"" env:"FEEDGATE_PLATFORM_BASE_URL"`
	PlatformTimeout time.Duration `help:"HTTP timeout for upstream platform requests" default:"60s" env:"FEEDGATE_PLATFORM_TIMEOUT"`

	// Login retry configuration
	LoginTimeout   time.Duration `help:"per-attempt timeout for credential login" default:"30s" env:"FEEDGATE_LOGIN_TIMEOUT"`
	LoginRetryWait time.Duration `help:"wait between credential login attempts" default:"1s" env:"FEEDGATE_LOGIN_RETRY_WAIT"`
	LoginAttempts  uint          `help:"total credential login attempts" default:"3" env:"FEEDGATE_LOGIN_ATTEMPTS"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"FEEDGATE_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"FEEDGATE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"FEEDGATE_POSTGRES_AUTO_MIGRATE"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "feedgate-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create the session store based on store type
	var sessionStore store.SessionStore

	switch c.StoreType {
	case "postgres":
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		sessionStore = postgresstore.NewSessionStore(pool)
		log.Info().Msg("Using PostgreSQL session store")

	default:
		sessionStore = memorystore.NewSessionStore()
		log.Info().Msg("Using in-memory session store")
	}

	// One HTTP client shared by every platform client the factory produces.
	factory := platform.NewFactory(platform.Config{
		BaseURL:    c.PlatformBaseURL,
		HTTPClient: &http.Client{Timeout: c.PlatformTimeout},
	})

	cache := clients.NewCache(factory)

	manager := session.NewManager(sessionStore, cache, session.Config{
		LoginTimeout:   c.LoginTimeout,
		LoginRetryWait: c.LoginRetryWait,
		LoginMaxTries:  c.LoginAttempts,
	})

	var handler http.Handler = server.NewServer(manager).Handler()
	handler = httputil.AuditMiddleware()(handler)
	handler = logger.NewHTTPRequests(log).Middleware()(handler)
	handler = withCORS(c.CORSOrigins, handler)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "feedgate")
	}

	srv := configureHTTPServer(c.Listen, handler)

	if c.Cert != "" && c.Key != "" {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		return srv.ListenAndServeTLS(c.Cert, c.Key)
	}

	log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
	return srv.ListenAndServe()
}

// withCORS adds CORS support to the API handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return middleware.Handler(h)
}
