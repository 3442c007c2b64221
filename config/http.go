package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for the client cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// PagesDir serves allowed pages from disk when set; otherwise the gate
	// decision is returned as JSON.
	PagesDir string `env:"PAGES_DIR" envDefault:""`

	// ClientCacheSize bounds the number of client runtimes kept in memory.
	ClientCacheSize int `env:"CLIENT_CACHE_SIZE" envDefault:"1024"`

	// ClientIdleTTL evicts client runtimes that saw no request for this long.
	ClientIdleTTL time.Duration `env:"CLIENT_IDLE_TTL" envDefault:"30m"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ClientCacheSize < 1 {
		h.ClientCacheSize = 1
	}
	if h.ClientIdleTTL <= 0 {
		h.ClientIdleTTL = 30 * time.Minute
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
