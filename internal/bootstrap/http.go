package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/target/stockgate"
	"github.com/target/stockgate/config"
	httpx "github.com/target/stockgate/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Clients httpx.ClientProvider
	Pages   fs.FS // Optional: defaults to PagesFS
	Logger  *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	pages := cfg.Pages
	if pages == nil {
		var err error
		if pages, err = PagesFS(appCfg.HTTP); err != nil {
			logger.Warn("pages unavailable, serving gate decisions only", "error", err)
		}
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger: logger,
		Router: httpx.RouterOptions{
			Clients:      cfg.Clients,
			CookieDomain: appCfg.HTTP.CookieDomain,
			Pages:        pages,
			Logger:       logger,
		},
	})

	return startServer(logger, handler, appCfg.HTTP.Addr)
}

// PagesFS picks the page shells: PAGES_DIR when set, else the embedded copy.
func PagesFS(cfg config.HTTPConfig) (fs.FS, error) {
	if cfg.PagesDir != "" {
		info, err := os.Stat(cfg.PagesDir)
		if err != nil {
			return nil, fmt.Errorf("stat pages dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("pages dir %q is not a directory", cfg.PagesDir)
		}
		return os.DirFS(cfg.PagesDir), nil
	}
	sub, err := fs.Sub(stockgate.PagesFS, "web/pages")
	if err != nil {
		return nil, fmt.Errorf("embedded pages: %w", err)
	}
	return sub, nil
}

type httpHandlerConfig struct {
	Logger *slog.Logger
	Router httpx.RouterOptions
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	// Order: Recover -> Logging -> Router
	return httpx.Chain(httpx.NewRouter(cfg.Router),
		httpx.Recover(cfg.Logger),
		httpx.Logging(cfg.Logger),
	)
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
