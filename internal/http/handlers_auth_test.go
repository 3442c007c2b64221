package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/ports"
)

func TestStatus_Anonymous(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(testRequest{method: http.MethodGet, path: "/auth/status"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[statusResponse](t, rec)
	assert.False(t, body.Authenticated)
	assert.Empty(t, body.Role)
	assert.Nil(t, body.ExpiresAt)
	assert.Empty(t, body.VisibleLinks)
}

func TestSignUp_FirstUserIsAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email": "ann@stock.io", "password": "Secret1!", "role": "purchase_manager",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[authResponse](t, rec)
	assert.Equal(t, domainauth.RoleAdmin, res.Role)
	assert.Equal(t, "/pages/index.html", res.RedirectTo)
	assert.Equal(t, epoch.Add(24*time.Hour), res.ExpiresAt.UTC())

	rec = s.do(testRequest{method: http.MethodGet, path: "/auth/status"})
	status := decode[statusResponse](t, rec)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "ann@stock.io", status.Identity)
	assert.Equal(t, domainauth.RoleAdmin, status.Role)
	assert.Len(t, status.VisibleLinks, len(domainauth.DefaultPageTable().Navigation()))
}

func TestSignIn_RememberMeAndRedirect(t *testing.T) {
	s := newTestServer(t, testPages)
	s.signUp("ann@stock.io", "Secret1!", "")
	require.Equal(t, http.StatusFound, s.do(testRequest{method: http.MethodPost, path: "/auth/signout"}).Code)

	rec := s.do(testRequest{method: http.MethodGet, path: "/pages/cost.html?branch=2"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/login.html", rec.Header().Get("Location"))

	rec = s.do(testRequest{method: http.MethodPost, path: "/auth/signin", body: map[string]any{
		"email": "ANN@stock.io ", "password": "Secret1!", "rememberMe": true,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[authResponse](t, rec)
	assert.Equal(t, "/pages/cost.html?branch=2", res.RedirectTo)
	assert.Equal(t, epoch.Add(30*24*time.Hour), res.ExpiresAt.UTC())
}

func TestSignIn_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{name: "wrong password", body: map[string]string{"email": "ann@stock.io", "password": "nope"}, wantCode: http.StatusUnauthorized, wantErr: "invalid_credentials"},
		{name: "unknown email", body: map[string]string{"email": "ghost@stock.io", "password": "x"}, wantCode: http.StatusUnauthorized, wantErr: "invalid_credentials"},
		{name: "missing password", body: map[string]string{"email": "ann@stock.io"}, wantCode: http.StatusBadRequest, wantErr: "validation"},
		{name: "unknown field", body: map[string]string{"email": "ann@stock.io", "role": "admin"}, wantCode: http.StatusBadRequest, wantErr: "invalid_json"},
		{name: "malformed", body: `{"email":`, wantCode: http.StatusBadRequest, wantErr: "invalid_json"},
		{name: "trailing data", body: `{"email":"a@x.com","password":"x"} {}`, wantCode: http.StatusBadRequest, wantErr: "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signin", body: tt.body})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")

	rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email": "ann@stock.io", "password": "other",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_email", decode[errorResponse](t, rec).Error)
}

func TestSignUp_InvalidRole(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email": "ann@stock.io", "password": "x", "role": "owner",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[errorResponse](t, rec).Error)
}

func TestSignOut_JSONAndRedirect(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")

	rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signout", json: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/pages/login.html", decode[map[string]string](t, rec)["redirectTo"])

	status := decode[statusResponse](t, s.do(testRequest{method: http.MethodGet, path: "/auth/status"}))
	assert.False(t, status.Authenticated)

	rec = s.do(testRequest{method: http.MethodPost, path: "/auth/signout"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pages/login.html", rec.Header().Get("Location"))
}

func TestStatus_ExpiredSessionReportsNoticeOnce(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")
	s.clients.clock.AddTime(24*time.Hour + 30*time.Minute)

	rec := s.do(testRequest{method: http.MethodGet, path: "/auth/status"})
	status := decode[statusResponse](t, rec)
	assert.False(t, status.Authenticated)
	assert.True(t, status.Expired)
	assert.Equal(t, ports.NoticeSessionExpired, status.Notice)
	assert.Equal(t, string(ports.NoticeSessionExpired), rec.Header().Get(NoticeHeader))

	status = decode[statusResponse](t, s.do(testRequest{method: http.MethodGet, path: "/auth/status"}))
	assert.Empty(t, status.Notice)
	assert.False(t, status.Expired)
}

func TestClients_AreIsolated(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp("ann@stock.io", "Secret1!", "")

	other := "0d9e4f7a-1b2c-4d3e-8f90-a1b2c3d4e5f6"
	status := decode[statusResponse](t, s.do(testRequest{method: http.MethodGet, path: "/auth/status", clientID: other}))
	assert.False(t, status.Authenticated)
}
