package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
)

// RouterOptions holds everything the HTTP router needs.
type RouterOptions struct {
	Clients      ClientProvider // Required: per-client services
	CookieDomain string         // Optional
	Pages        fs.FS          // Optional: page files served by /pages/{page}
	Logger       *slog.Logger   // Optional
}

// NewRouter creates the HTTP router. Everything except the health check runs
// inside a client scope.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scoped := http.NewServeMux()
	registerAuthRoutes(scoped, &AuthHandlers{Logger: logger})
	registerUserRoutes(scoped, &UserHandlers{})
	registerPageRoutes(scoped, &PageHandlers{Pages: opts.Pages, Logger: logger})

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("/", Chain(scoped, ClientScope(opts.Clients, opts.CookieDomain, logger)))
	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("POST /auth/signin", h.SignIn)
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/signout", h.SignOut)
}

func registerUserRoutes(mux *http.ServeMux, h *UserHandlers) {
	mux.HandleFunc("GET /api/users", h.List)
	mux.HandleFunc("POST /api/users", h.Create)
	mux.HandleFunc("PATCH /api/users/{email}", h.Update)
	mux.HandleFunc("DELETE /api/users/{email}", h.Delete)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers) {
	mux.HandleFunc("GET /pages/{page}", h.Serve)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, pagesPrefix+"index.html", http.StatusFound)
	})
}
