// Package identitytoolkit is a REST client for the hosted identity service
// (Identity Toolkit accounts API and Secure Token API).
package identitytoolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com"
	DefaultTokenURL    = "https://securetoken.googleapis.com"
)

// ClientOptions groups configuration for Client.
type ClientOptions struct {
	APIKey      string        // Required
	IdentityURL string        // Optional: defaults to DefaultIdentityURL
	TokenURL    string        // Optional: defaults to DefaultTokenURL
	Timeout     time.Duration // Optional: per-request timeout
	RetryCount  int           // Optional: retries on transport errors and 5xx
	Clock       ports.Clock   // Optional: used to compute token expiry
	HTTPClient  *http.Client  // Optional: underlying transport
	Logger      *slog.Logger  // Optional
}

// Client implements ports.IdentityClient over REST.
type Client struct {
	http        *resty.Client
	apiKey      string
	identityURL string
	tokenURL    string
	now         func() time.Time
	logger      *slog.Logger
}

var _ ports.IdentityClient = (*Client)(nil)

// NewClient constructs a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("identity API key is required")
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryCondition)
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}

	return &Client{
		http:        rc,
		apiKey:      opts.APIKey,
		identityURL: strings.TrimRight(defaultString(opts.IdentityURL, DefaultIdentityURL), "/"),
		tokenURL:    strings.TrimRight(defaultString(opts.TokenURL, DefaultTokenURL), "/"),
		now:         now,
		logger:      logger.With("component", "identitytoolkit"),
	}, nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// retryCondition retries on network errors and server errors only.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type tokenResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword verifies email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (ports.Credential, error) {
	return c.account(ctx, "accounts:signInWithPassword", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	})
}

// SignUp creates a new account.
func (c *Client) SignUp(ctx context.Context, email, password string) (ports.Credential, error) {
	return c.account(ctx, "accounts:signUp", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	})
}

func (c *Client) account(ctx context.Context, method string, body passwordRequest) (ports.Credential, error) {
	var (
		out    accountResponse
		errOut apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		SetError(&errOut).
		Post(c.identityURL + "/v1/" + method)
	if err := c.check(ctx, method, resp, err, &errOut); err != nil {
		return ports.Credential{}, err
	}

	return ports.Credential{
		UserID:       out.LocalID,
		Email:        out.Email,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    c.expiry(out.ExpiresIn),
	}, nil
}

// Refresh exchanges a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (ports.Credential, error) {
	if refreshToken == "" {
		return ports.Credential{}, apperrors.Unauthenticated("refresh token is missing")
	}
	var (
		out    tokenResponse
		errOut apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&out).
		SetError(&errOut).
		Post(c.tokenURL + "/v1/token")
	if err := c.check(ctx, "token", resp, err, &errOut); err != nil {
		return ports.Credential{}, err
	}

	return ports.Credential{
		UserID:       out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    c.expiry(out.ExpiresIn),
	}, nil
}

func (c *Client) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return c.now().Add(time.Duration(secs) * time.Second)
}

func (c *Client) check(ctx context.Context, op string, resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		c.logger.WarnContext(ctx, "identity request failed", "op", op, "error", err)
		return apperrors.RemoteUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	if !resp.IsError() {
		return nil
	}
	return mapAPIError(resp.StatusCode(), apiErr.Error.Message)
}

// mapAPIError translates the service's error codes into application errors.
// Messages look like "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be at least 6 characters".
func mapAPIError(status int, message string) error {
	code, detail, _ := strings.Cut(message, " : ")
	code = strings.TrimSpace(code)

	switch code {
	case "EMAIL_EXISTS":
		return &apperrors.AppError{Code: apperrors.ErrCodeDuplicateEmail, Message: "email already registered", Field: "email"}
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return apperrors.InvalidCredentials("invalid email or password")
	case "INVALID_EMAIL":
		return apperrors.ValidationField("email", "must be a valid email address")
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		msg := "password rejected"
		if detail != "" {
			msg = detail
		}
		return apperrors.ValidationField("password", msg)
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "USER_NOT_FOUND", "INVALID_ID_TOKEN":
		return apperrors.Unauthenticated("remote session is no longer valid")
	}

	return apperrors.RemoteUnavailable(fmt.Errorf("status %d: %s", status, message))
}
