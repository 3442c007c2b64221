package identitytoolkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/stockgate/internal/data"
	apperrors "github.com/target/stockgate/internal/errors"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{
		APIKey:      "test-key",
		IdentityURL: srv.URL,
		TokenURL:    srv.URL + "/",
		Timeout:     2 * time.Second,
		Clock:       data.NewFixedTimeProvider(epoch),
	})
	require.NoError(t, err)
	return c
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientOptions{APIKey: "  "})
	require.Error(t, err)
}

func TestClient_SignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body passwordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buyer@stock.io", body.Email)
		assert.Equal(t, "pw", body.Password)
		assert.True(t, body.ReturnSecureToken)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"localId":"uid-1","email":"buyer@stock.io","idToken":"id","refreshToken":"rt","expiresIn":"1800"}`))
	})

	cred, err := c.SignInWithPassword(context.Background(), "buyer@stock.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", cred.UserID)
	assert.Equal(t, "buyer@stock.io", cred.Email)
	assert.Equal(t, "id", cred.IDToken)
	assert.Equal(t, "rt", cred.RefreshToken)
	assert.Equal(t, epoch.Add(30*time.Minute), cred.ExpiresAt)
}

func TestClient_SignUpDuplicateEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signUp", r.URL.Path)
		writeAPIError(w, http.StatusBadRequest, "EMAIL_EXISTS")
	})

	_, err := c.SignUp(context.Background(), "a@x.io", "pw")
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	assert.Equal(t, "email", apperrors.GetField(err))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		check   func(error) bool
	}{
		{"unknown email", 400, "EMAIL_NOT_FOUND", apperrors.IsInvalidCredentials},
		{"wrong password", 400, "INVALID_PASSWORD", apperrors.IsInvalidCredentials},
		{"login credentials", 400, "INVALID_LOGIN_CREDENTIALS", apperrors.IsInvalidCredentials},
		{"weak password", 400, "WEAK_PASSWORD : Password should be at least 6 characters", apperrors.IsValidation},
		{"invalid email", 400, "INVALID_EMAIL", apperrors.IsValidation},
		{"unknown code", 400, "OPERATION_NOT_ALLOWED", apperrors.IsRemoteUnavailable},
		{"server error", 503, "UNAVAILABLE", apperrors.IsRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.status, tt.message)
			})
			_, err := c.SignInWithPassword(context.Background(), "a@x.io", "pw")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestClient_WeakPasswordKeepsDetail(t *testing.T) {
	err := mapAPIError(400, "WEAK_PASSWORD : Password should be at least 6 characters")
	assert.Equal(t, "password", apperrors.GetField(err))
	assert.Contains(t, err.Error(), "at least 6 characters")
}

func TestClient_TransportFailureIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientOptions{APIKey: "k", IdentityURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.SignInWithPassword(context.Background(), "a@x.io", "pw")
	require.ErrorIs(t, err, apperrors.ErrRemoteUnavailable)
}

func TestClient_Refresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"uid-1","id_token":"id-new","refresh_token":"rt-new","expires_in":"3600"}`))
	})

	cred, err := c.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", cred.UserID)
	assert.Equal(t, "id-new", cred.IDToken)
	assert.Equal(t, "rt-new", cred.RefreshToken)
	assert.Equal(t, epoch.Add(time.Hour), cred.ExpiresAt)
}

func TestClient_RefreshRejectedToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusBadRequest, "TOKEN_EXPIRED")
	})

	_, err := c.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = c.Refresh(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}
