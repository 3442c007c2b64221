package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/observability/metrics"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
)

const (
	// RememberMeTTL is the session lifetime when "remember me" is checked.
	RememberMeTTL = 30 * 24 * time.Hour
	// SessionTTL is the default session lifetime.
	SessionTTL = 24 * time.Hour
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Directory  ports.Directory      // Required: usually a FallbackDirectory
	Reconciler *SessionReconciler   // Required: writes the session record
	Remote     ports.RemoteIdentity // Optional: signed out on SignOut
	Metrics    statsd.Sink          // Optional: counts attempts by outcome
	Logger     *slog.Logger         // Optional

	RememberTTL time.Duration // Optional: defaults to RememberMeTTL
	SessionTTL  time.Duration // Optional: defaults to SessionTTL
}

// AuthService orchestrates sign-in, sign-up and sign-out.
type AuthService struct {
	directory   ports.Directory
	reconciler  *SessionReconciler
	remote      ports.RemoteIdentity
	metrics     statsd.Sink
	logger      *slog.Logger
	rememberTTL time.Duration
	sessionTTL  time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Directory == nil {
		return nil, errors.New("directory is required")
	}
	if opts.Reconciler == nil {
		return nil, errors.New("session reconciler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	remember := opts.RememberTTL
	if remember <= 0 {
		remember = RememberMeTTL
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &AuthService{
		directory:   opts.Directory,
		reconciler:  opts.Reconciler,
		remote:      opts.Remote,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "auth_service"),
		rememberTTL: remember,
		sessionTTL:  ttl,
	}, nil
}

// SignInInput groups parameters for SignIn.
type SignInInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// AuthResult is the session established by a successful sign-in or sign-up.
type AuthResult struct {
	Session domainauth.Session `json:"session"`
	Role    domainauth.Role    `json:"role"`
}

// SignIn checks credentials and establishes a session. Unknown emails are rejected.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (res *AuthResult, err error) {
	defer s.observe(metrics.ActionSignIn, time.Now(), &err)

	email := domainauth.NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.ValidationField("email", "is required")
	}
	if in.Password == "" {
		return nil, apperrors.ValidationField("password", "is required")
	}

	p, err := s.directory.SignIn(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}
	if p.Email == "" {
		p.Email = email
	}

	ttl := s.sessionTTL
	if in.RememberMe {
		ttl = s.rememberTTL
	}
	sess, err := s.reconciler.Establish(ctx, p, ttl)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	s.logger.InfoContext(ctx, "user signed in", "identity", sess.Identity, "role", sess.Role, "remember_me", in.RememberMe)
	return &AuthResult{Session: sess, Role: sess.Role}, nil
}

// SignUp registers a user and signs them in. The first user of an empty directory
// becomes an administrator.
func (s *AuthService) SignUp(ctx context.Context, in domainauth.NewUser) (res *AuthResult, err error) {
	defer s.observe(metrics.ActionSignUp, time.Now(), &err)

	p, err := s.directory.SignUp(ctx, in)
	if err != nil {
		return nil, err
	}
	if p.Email == "" {
		p.Email = in.Email
	}
	sess, err := s.reconciler.Establish(ctx, p, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	s.logger.InfoContext(ctx, "user signed up", "identity", sess.Identity, "role", sess.Role)
	return &AuthResult{Session: sess, Role: sess.Role}, nil
}

// SignOut signs out remotely when possible and always clears the local session.
// It returns the page the client should go to next.
func (s *AuthService) SignOut(ctx context.Context) (next string, err error) {
	defer s.observe(metrics.ActionSignOut, time.Now(), &err)

	if s.remote != nil {
		if err := s.remote.SignOut(ctx); err != nil {
			s.logger.WarnContext(ctx, "remote sign-out failed", "error", err)
		}
	}
	if err := s.reconciler.Clear(ctx); err != nil {
		return "", err
	}
	return domainauth.PageLogin, nil
}

func (s *AuthService) observe(action string, start time.Time, errp *error) {
	metrics.EmitAuth(s.metrics, metrics.AuthMetric{Action: action, Duration: time.Since(start), Err: *errp})
}
