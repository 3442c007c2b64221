package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/ports"
	"github.com/target/stockgate/internal/service"
)

// ClientCookie names the cookie that binds a browser to its client namespace.
const ClientCookie = "client_id"

const clientCookieMaxAge = 400 * 24 * time.Hour

// SessionResolver resolves the effective session on a page load.
type SessionResolver interface {
	Resolve(ctx context.Context) (service.Resolution, error)
}

// PageGate decides access to a page.
type PageGate interface {
	Decide(ctx context.Context, target string, authenticated bool, role domainauth.Role) (service.Decision, error)
	Table() *domainauth.PageTable
}

// AuthOperations covers sign-in, sign-up and sign-out.
type AuthOperations interface {
	SignIn(ctx context.Context, in service.SignInInput) (*service.AuthResult, error)
	SignUp(ctx context.Context, in domainauth.NewUser) (*service.AuthResult, error)
	SignOut(ctx context.Context) (string, error)
}

// UserAdmin covers the admin-only user directory operations.
type UserAdmin interface {
	List(ctx context.Context, caller domainauth.Session) ([]domainauth.UserView, error)
	Create(ctx context.Context, caller domainauth.Session, in domainauth.NewUser) (domainauth.UserView, error)
	Update(ctx context.Context, caller domainauth.Session, email string, patch domainauth.UserPatch) (domainauth.UserView, error)
	Delete(ctx context.Context, caller domainauth.Session, email string) error
}

// NoticeReader pops the pending user-visible notice.
type NoticeReader interface {
	Pop(ctx context.Context) (ports.Notice, error)
}

// ClientServices are the services bound to one client namespace.
type ClientServices struct {
	Sessions SessionResolver // Required
	Gate     PageGate        // Required
	Auth     AuthOperations  // Required
	Users    UserAdmin       // Required
	Notices  NoticeReader    // Optional
}

// ClientProvider returns the services for a client id, building them on first use.
type ClientProvider interface {
	Get(ctx context.Context, clientID string) (*ClientServices, error)
}

// ClientScope returns a middleware that reads or issues the client cookie and
// attaches that client's services to the request context.
func ClientScope(provider ClientProvider, cookieDomain string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := clientIDFromRequest(r)
			if !ok {
				clientID = uuid.NewString()
				setClientCookie(w, r, clientID, cookieDomain)
			}

			services, err := provider.Get(r.Context(), clientID)
			if err != nil {
				logger.ErrorContext(r.Context(), "client runtime unavailable", "client_id", clientID, "error", err)
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: "client_unavailable",
					Err:     errors.New("client session storage unavailable"),
				})
				return
			}

			ctx := SetClientInContext(r.Context(), clientID, services)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIDFromRequest accepts only well-formed ids so a forged cookie cannot
// address arbitrary storage keys.
func clientIDFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(ClientCookie)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Value))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func setClientCookie(w http.ResponseWriter, r *http.Request, clientID, cookieDomain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookie,
		Value:    clientID,
		Path:     "/",
		Domain:   cookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(clientCookieMaxAge.Seconds()),
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// wantsJSON reports whether the caller is a script rather than a page navigation.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("Hx-Request"), "true") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// clientServices fetches the scoped services or writes a 500 when ClientScope was not installed.
func clientServices(w http.ResponseWriter, r *http.Request) (*ClientServices, bool) {
	s, ok := ClientFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "client_scope_missing",
			Err:     errors.New("client scope missing"),
		})
		return nil, false
	}
	return s, true
}
