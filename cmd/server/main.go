package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpa-academy/schooladmin/internal/auth"
	"github.com/mpa-academy/schooladmin/internal/config"
	"github.com/mpa-academy/schooladmin/internal/connection"
	"github.com/mpa-academy/schooladmin/internal/handlers"
	"github.com/mpa-academy/schooladmin/internal/middleware"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/service"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/storage/sqlstore"
	"github.com/mpa-academy/schooladmin/internal/validation"
	"github.com/mpa-academy/schooladmin/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// The store connects in the background; the server starts immediately and
	// serves degraded reads until it is ready.
	manager := connection.NewManager(func(ctx context.Context) (storage.Store, error) {
		return sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	}, connection.Options{
		MaxAttempts:       cfg.ConnectMaxAttempts,
		Backoff:           cfg.ConnectBackoff,
		ReconnectInterval: cfg.ReconnectInterval,
		PingTimeout:       cfg.StoreOpTimeout,
	})
	slog.Info("Storage configured", "driver", cfg.DBDriver)

	ro := rollover.NewService()
	mux := http.NewServeMux()

	handlers.New(manager, validation.New(), ro, handlers.WithOpTimeout(cfg.StoreOpTimeout)).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	var authenticator auth.Authenticator
	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled() {
		authenticator = auth.NewAdminAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash)
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	} else {
		slog.Warn("ADMIN_PASSWORD_HASH not set, admin RPCs are unauthenticated")
	}
	adminSvc := service.NewAdminService(manager, ro, authenticator, jwtManager, slog.Default())
	adminPath, adminHandler := service.NewAdminServiceHandler(adminSvc,
		connect.WithInterceptors(middleware.LoggingInterceptor()))
	mux.Handle(adminPath, adminHandler)

	// Serve static files
	staticDir, err := filepath.Abs(cfg.StaticPath)
	if err != nil {
		return err
	}
	slog.Info("Serving static files", "path", staticDir)
	mux.Handle("/", staticHandler(staticDir))

	handler := middleware.Logging(routeLabel, middleware.CORS(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for gRPC clients of the admin service)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(ctx)
	})
	g.Go(func() error {
		slog.Info("Server starting", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// staticHandler serves the browser front end, falling back to index.html for
// unknown paths.
func staticHandler(staticDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		http.ServeFile(w, r, filePath)
	})
}

// routeLabel keeps metric label cardinality bounded.
func routeLabel(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	switch path {
	case "/learners", "/fees", "/books", "/classBooks", "/feeStructure", "/termSettings",
		"/learnerArchives", "/newAcademicYear", "/health", "/metrics",
		service.LoginProcedure, service.StartAcademicYearProcedure, service.GetStatusProcedure:
		return path
	}
	return "static"
}
