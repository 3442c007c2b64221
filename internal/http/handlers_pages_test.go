package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/ports"
	"github.com/target/stockgate/internal/service"
)

// purchaseManager leaves the client signed in as a purchase manager, with an
// admin already registered in the same namespace.
func purchaseManager(s *testServer) {
	s.t.Helper()
	s.signUp("root@stock.io", "Secret1!", "")
	s.signUp("buyer@stock.io", "Secret1!", string(domainauth.RolePurchaseManager))
}

func TestPages_AnonymousRedirectsToLogin(t *testing.T) {
	s := newTestServer(t, testPages)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/products.html"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/login.html", rec.Header().Get("Location"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get(NoticeHeader))
}

func TestPages_PublicPageServedToAnonymous(t *testing.T) {
	s := newTestServer(t, testPages)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/login.html"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Sign in")
}

func TestPages_SignedInUserLeavesLoginPage(t *testing.T) {
	s := newTestServer(t, testPages)
	s.signUp("ann@stock.io", "Secret1!", "")

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/login.html"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/index.html", rec.Header().Get("Location"))
}

func TestPages_DeniedRedirectsHomeWithNotice(t *testing.T) {
	s := newTestServer(t, testPages)
	purchaseManager(s)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/products.html"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/index.html", rec.Header().Get("Location"))
	assert.Empty(t, rec.Header().Get(NoticeHeader))

	// The landing page carries the pending notice exactly once.
	rec = s.do(testRequest{method: http.MethodGet, path: "/pages/index.html"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(ports.NoticeAccessDenied), rec.Header().Get(NoticeHeader))
	assert.Contains(t, rec.Body.String(), "Dashboard")

	rec = s.do(testRequest{method: http.MethodGet, path: "/pages/index.html"})
	assert.Empty(t, rec.Header().Get(NoticeHeader))
}

func TestPages_JSONDecision(t *testing.T) {
	s := newTestServer(t, testPages)
	purchaseManager(s)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/products.html", json: true})
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[service.Decision](t, rec)
	assert.Equal(t, service.RedirectToHome, d.Kind)
	assert.Equal(t, "index.html", d.Target)
	assert.Empty(t, d.Notice)

	rec = s.do(testRequest{method: http.MethodGet, path: "/pages/cost.html", json: true})
	d = decode[service.Decision](t, rec)
	assert.Equal(t, service.Allow, d.Kind)
	assert.Equal(t, "cost.html", d.Page)
	assert.Equal(t, ports.NoticeAccessDenied, d.Notice)
	pages := make([]string, 0, len(d.VisibleLinks))
	for _, l := range d.VisibleLinks {
		pages = append(pages, l.Page)
	}
	assert.Equal(t, []string{"index.html", "purchases.html", "cost.html"}, pages)
}

func TestPages_NoFilesReturnsDecision(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/users.html"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.Allow, decode[service.Decision](t, rec).Kind)
}

func TestPages_MissingFile(t *testing.T) {
	s := newTestServer(t, testPages)
	s.signUp("ann@stock.io", "Secret1!", "")

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/waste.html"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPages_ExpiredSessionRedirectsWithNotice(t *testing.T) {
	s := newTestServer(t, testPages)
	s.signUp("ann@stock.io", "Secret1!", "")
	s.clients.clock.AddTime(24*time.Hour + time.Minute)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/cost.html"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/login.html", rec.Header().Get("Location"))
	assert.Empty(t, rec.Header().Get(NoticeHeader))

	rec = s.do(testRequest{method: http.MethodGet, path: "/pages/login.html"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(ports.NoticeSessionExpired), rec.Header().Get(NoticeHeader))

	rec = s.do(testRequest{method: http.MethodGet, path: "/pages/login.html"})
	assert.Empty(t, rec.Header().Get(NoticeHeader))
}

func TestRoot_RedirectsToLanding(t *testing.T) {
	s := newTestServer(t, testPages)

	rec := s.do(testRequest{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/index.html", rec.Header().Get("Location"))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/pages/index.html", pageURL("index.html"))
	assert.Equal(t, "/pages/cost.html?branch=2", pageURL("/pages/cost.html?branch=2"))
}
