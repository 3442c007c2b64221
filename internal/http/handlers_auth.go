package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/ports"
	"github.com/target/stockgate/internal/service"
)

// NoticeHeader carries the pending flash notice on allowed page and status responses.
const NoticeHeader = "X-Stockgate-Notice"

// pagesPrefix is where page tokens are served.
const pagesPrefix = "/pages/"

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type statusResponse struct {
	Authenticated bool                 `json:"authenticated"`
	Identity      string               `json:"identity,omitempty"`
	UserID        string               `json:"userId,omitempty"`
	Role          domainauth.Role      `json:"role,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	Source        string               `json:"source,omitempty"`
	Expired       bool                 `json:"expired,omitempty"`
	VisibleLinks  []domainauth.NavLink `json:"visibleLinks,omitempty"`
	Notice        ports.Notice         `json:"notice,omitempty"`
}

type authResponse struct {
	Authenticated bool            `json:"authenticated"`
	Identity      string          `json:"identity"`
	Role          domainauth.Role `json:"role"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	RedirectTo    string          `json:"redirectTo"`
}

// Status resolves the session for this client.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
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

	resp := statusResponse{
		Authenticated: res.Session.Authenticated,
		Source:        string(res.Source),
		Expired:       res.Expired,
	}
	if res.Session.Authenticated {
		expires := res.Session.ExpiresAt
		resp.Identity = res.Session.Identity
		resp.UserID = res.Session.UserID
		resp.Role = res.Session.Role
		resp.ExpiresAt = &expires
		resp.VisibleLinks = svc.Gate.Table().VisibleLinks(res.Session.Role)
	}
	resp.Notice = h.popNotice(ctx, svc)
	if resp.Notice != "" {
		w.Header().Set(NoticeHeader, string(resp.Notice))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// SignIn verifies credentials and establishes the session.
// POST /auth/signin {email, password, rememberMe}.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	svc, ok := clientServices(w, r)
	if !ok {
		return
	}
	var in service.SignInInput
	if !DecodeJSON(w, r, &in) {
		return
	}

	res, err := svc.Auth.SignIn(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAuthResult(w, r, svc, res)
}

// SignUp registers a user and signs them in.
// POST /auth/signup {email, password, firstName, lastName, role}.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	svc, ok := clientServices(w, r)
	if !ok {
		return
	}
	var in domainauth.NewUser
	if !DecodeJSON(w, r, &in) {
		return
	}

	res, err := svc.Auth.SignUp(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAuthResult(w, r, svc, res)
}

// SignOut ends the session and sends the client to the login page.
// POST /auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	svc, ok := clientServices(w, r)
	if !ok {
		return
	}

	target, err := svc.Auth.SignOut(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	redirectTo := pageURL(target)
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":     "success",
			"redirectTo": redirectTo,
		})
		return
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// writeAuthResult answers a successful sign-in or sign-up with the post-login destination.
func (h *AuthHandlers) writeAuthResult(
	w http.ResponseWriter,
	r *http.Request,
	svc *ClientServices,
	res *service.AuthResult,
) {
	ctx := r.Context()
	redirectTo := pageURL(svc.Gate.Table().Landing())
	d, err := svc.Gate.Decide(ctx, svc.Gate.Table().Login(), true, res.Role)
	switch {
	case err != nil:
		h.logger().WarnContext(ctx, "post-login destination unavailable", "error", err)
	case d.Target != "":
		redirectTo = pageURL(d.Target)
	}

	WriteJSON(w, http.StatusOK, authResponse{
		Authenticated: true,
		Identity:      res.Session.Identity,
		Role:          res.Role,
		ExpiresAt:     res.Session.ExpiresAt,
		RedirectTo:    redirectTo,
	})
}

func (h *AuthHandlers) popNotice(ctx context.Context, svc *ClientServices) ports.Notice {
	if svc.Notices == nil {
		return ""
	}
	n, err := svc.Notices.Pop(ctx)
	if err != nil {
		h.logger().WarnContext(ctx, "read notice failed", "error", err)
		return ""
	}
	return n
}

// pageURL turns a gate target into a browser location. Tokens such as
// "index.html" live under /pages/; remembered targets may already be paths.
func pageURL(target string) string {
	if strings.HasPrefix(target, "/") {
		return target
	}
	return pagesPrefix + target
}
