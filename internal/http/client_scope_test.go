package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == ClientCookie {
			return c
		}
	}
	return nil
}

func TestClientScope_IssuesCookieWhenMissing(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	c := clientCookie(rec)
	require.NotNil(t, c)
	_, err := uuid.Parse(c.Value)
	require.NoError(t, err)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.Secure)
}

func TestClientScope_KeepsValidCookie(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(testRequest{method: http.MethodGet, path: "/auth/status"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, clientCookie(rec))

	s.clients.mu.Lock()
	defer s.clients.mu.Unlock()
	assert.Contains(t, s.clients.clients, testClientID)
}

func TestClientScope_ReplacesForgedCookie(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "../../admin"})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	c := clientCookie(rec)
	require.NotNil(t, c)
	assert.NotEqual(t, "../../admin", c.Value)
	assert.True(t, c.Secure)
}

func TestClientScope_ProviderFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.clients.err = errors.New("redis down")

	rec := s.do(testRequest{method: http.MethodGet, path: "/auth/status"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "client_unavailable", body.Error)
	assert.NotContains(t, body.Message, "redis")
}

func TestHealthz_SkipsClientScope(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, clientCookie(rec))
	assert.Zero(t, s.clients.calls)
}

func TestClientServices_MissingScope(t *testing.T) {
	rec := httptest.NewRecorder()
	(&AuthHandlers{}).Status(rec, httptest.NewRequest(http.MethodGet, "/auth/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
