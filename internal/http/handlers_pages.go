package httpx

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"

	"github.com/target/stockgate/internal/service"
)

// PageHandlers gates page loads.
type PageHandlers struct {
	// Pages holds the page files; when nil the gate decision is returned as JSON.
	Pages  fs.FS
	Logger *slog.Logger
}

func (h *PageHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Serve resolves the session, runs the access gate and then either redirects or
// renders the page.
// GET /pages/{page}.
func (h *PageHandlers) Serve(w http.ResponseWriter, r *http.Request) {
	svc, ok := clientServices(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	res, err := svc.Sessions.Resolve(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sess := res.Session

	d, err := svc.Gate.Decide(ctx, r.URL.RequestURI(), sess.Authenticated, sess.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	// Notices wait on the board for the next allowed page.
	if d.Kind != service.Allow {
		if wantsJSON(r) {
			WriteJSON(w, http.StatusOK, d)
			return
		}
		http.Redirect(w, r, pageURL(d.Target), http.StatusFound)
		return
	}

	if svc.Notices != nil {
		if n, popErr := svc.Notices.Pop(ctx); popErr != nil {
			h.logger().WarnContext(ctx, "read notice failed", "error", popErr)
		} else if n != "" {
			d.Notice = n
			w.Header().Set(NoticeHeader, string(n))
		}
	}

	if h.Pages == nil || wantsJSON(r) {
		WriteJSON(w, http.StatusOK, d)
		return
	}
	h.render(w, r, d.Page)
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, page string) {
	if !fs.ValidPath(page) || path.Ext(page) != ".html" {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("page not found")})
		return
	}
	body, err := fs.ReadFile(h.Pages, page)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger().ErrorContext(r.Context(), "read page failed", "page", page, "error", err)
		}
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("page not found")})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		// Client went away.
		return
	}
}
