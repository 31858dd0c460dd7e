// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/grocer/internal/catalog"
	catalogpostgres "github.com/bissquit/grocer/internal/catalog/postgres"
	"github.com/bissquit/grocer/internal/config"
	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/identity"
	"github.com/bissquit/grocer/internal/identity/jwt"
	identitypostgres "github.com/bissquit/grocer/internal/identity/postgres"
	"github.com/bissquit/grocer/internal/orders"
	orderspostgres "github.com/bissquit/grocer/internal/orders/postgres"
	"github.com/bissquit/grocer/internal/pkg/ctxlog"
	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/bissquit/grocer/internal/pkg/metrics"
	"github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/bissquit/grocer/internal/subscriptions"
	subscriptionspostgres "github.com/bissquit/grocer/internal/subscriptions/postgres"
	"github.com/bissquit/grocer/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	bgCancel      context.CancelFunc

	scheduler *subscriptions.Scheduler
	driver    *subscriptions.Driver
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ApplicationName: "grocer",
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	app := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		bgCancel: bgCancel,
	}

	go metrics.CollectDBPoolMetrics(bgCtx, db, 15*time.Second)

	router, err := app.setupRouter(bgCtx, loc)
	if err != nil {
		db.Close()
		bgCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the scheduler and the HTTP servers.
func (a *App) Run() error {
	if a.driver != nil {
		a.driver.Start()
	} else {
		a.logger.Warn("subscription scheduler is disabled: recurring orders will not be created")
	}

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var errs []error

	// Stop the scheduler first so no tick runs against a closing pool
	if a.driver != nil {
		if err := a.driver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}

	a.bgCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the subscription scheduler so tests can run ticks
// at chosen instants.
func (a *App) Scheduler() *subscriptions.Scheduler {
	return a.scheduler
}

func (a *App) runRateLimitCleanup(ctx context.Context, limiter *httputil.RateLimiter) {
	ticker := time.NewTicker(a.config.RateLimit.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) setupRouter(ctx context.Context, loc *time.Location) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	if a.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	}

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Grocer API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:           a.config.JWT.SecretKey,
		AccessTokenDuration: a.config.JWT.AccessTokenDuration,
		Issuer:              a.config.JWT.Issuer,
	})
	identityService := identity.NewService(identityRepo, jwtAuth)
	identityHandler := identity.NewHandler(identityService, identity.CookieSettings{
		Secure:        a.config.Cookie.Secure,
		Domain:        a.config.Cookie.Domain,
		TokenDuration: a.config.JWT.AccessTokenDuration,
	})

	catalogRepo := catalogpostgres.NewRepository(a.db)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	ordersRepo := orderspostgres.NewRepository(a.db)
	ordersService := orders.NewService(ordersRepo, catalogService)
	ordersHandler := orders.NewHandler(ordersService)

	subscriptionsRepo := subscriptionspostgres.NewRepository(a.db)
	subscriptionsService := subscriptions.NewService(subscriptionsRepo, catalogService, loc, time.Now)
	subscriptionsHandler := subscriptions.NewHandler(subscriptionsService)

	a.scheduler = subscriptions.NewScheduler(subscriptions.SchedulerConfig{
		BatchSize:   a.config.Scheduler.BatchSize,
		Workers:     a.config.Scheduler.Workers,
		ItemTimeout: a.config.Scheduler.ItemTimeout,
	}, subscriptionsRepo, catalogService, ordersRepo)

	a.logger.Info("subscription scheduler configured",
		"enabled", a.config.Scheduler.Enabled,
		"spec", a.config.Scheduler.Spec,
		"timezone", loc.String(),
		"workers", a.config.Scheduler.Workers,
	)

	if a.config.Scheduler.Enabled {
		driver, err := subscriptions.NewDriver(subscriptions.DriverConfig{
			Spec:        a.config.Scheduler.Spec,
			Location:    loc,
			TickTimeout: a.config.Scheduler.TickTimeout,
			Logger:      a.logger,
		}, a.scheduler, time.Now)
		if err != nil {
			return nil, fmt.Errorf("create scheduler driver: %w", err)
		}
		a.driver = driver
	}

	r.Route("/api/v1", func(r chi.Router) {
		if a.config.RateLimit.Enabled {
			limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{
				Enabled:  true,
				Requests: a.config.RateLimit.Requests,
				Window:   a.config.RateLimit.Window,
			})
			go a.runRateLimitCleanup(ctx, limiter)
			r.Use(limiter.Middleware)
		}

		identityHandler.RegisterRoutes(r)
		catalogHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)
			ordersHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireType(domain.UserTypePersonal, domain.UserTypeBusiness))
				ordersHandler.RegisterBuyerRoutes(r)
				subscriptionsHandler.RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireType(domain.UserTypeSeller))
				catalogHandler.RegisterSellerRoutes(r)
				ordersHandler.RegisterSellerRoutes(r)
			})
		})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
