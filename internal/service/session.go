package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

const (
	defaultRemoteTimeout = 10 * time.Second
	defaultRemoteTTL     = 24 * time.Hour
)

// SessionReconcilerOptions groups dependencies for SessionReconciler.
type SessionReconcilerOptions struct {
	Sessions      ports.SessionStore   // Required
	Remote        ports.RemoteIdentity // Optional: nil means local-only
	Notifier      ports.Notifier       // Optional: receives "session expired"
	Clock         ports.Clock          // Optional: defaults to wall clock
	Logger        *slog.Logger         // Optional
	RemoteTimeout time.Duration        // Optional: bounds each remote call
	RemoteTTL     time.Duration        // Optional: lifetime of a remotely established session
}

// ResolutionSource says which side decided a Resolution.
type ResolutionSource string

const (
	SourceLocal  ResolutionSource = "local"
	SourceRemote ResolutionSource = "remote"
)

// Resolution is the outcome of resolving the session on a page load.
type Resolution struct {
	Session domainauth.Session
	Source  ResolutionSource
	// Expired is set when a stored session was found past its expiration and cleared.
	Expired bool
}

// SessionReconciler decides the effective identity and role of a client and is
// the only writer of its session record.
type SessionReconciler struct {
	sessions      ports.SessionStore
	remote        ports.RemoteIdentity
	notifier      ports.Notifier
	now           func() time.Time
	logger        *slog.Logger
	remoteTimeout time.Duration
	remoteTTL     time.Duration

	mu sync.Mutex
	// gen is bumped under mu by every write that does not come from Apply.
	gen uint64
}

// NewSessionReconciler constructs a SessionReconciler.
func NewSessionReconciler(opts SessionReconcilerOptions) (*SessionReconciler, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	ttl := opts.RemoteTTL
	if ttl <= 0 {
		ttl = defaultRemoteTTL
	}
	return &SessionReconciler{
		sessions:      opts.Sessions,
		remote:        opts.Remote,
		notifier:      opts.Notifier,
		now:           now,
		logger:        logger.With("component", "session_reconciler"),
		remoteTimeout: timeout,
		remoteTTL:     ttl,
	}, nil
}

// Resolve runs the page-load algorithm. A signed-in remote user wins; otherwise the
// stored session is used after its expiration is checked.
func (r *SessionReconciler) Resolve(ctx context.Context) (Resolution, error) {
	if r.remote != nil {
		state, err := r.currentRemoteUser(ctx)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "remote identity unavailable, using stored session", "error", err)
		case state.SignedIn:
			sess, applyErr := r.Apply(ctx, state)
			if applyErr != nil {
				return Resolution{}, applyErr
			}
			return Resolution{Session: sess, Source: SourceRemote}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocalLocked(ctx)
}

// Apply reconciles one remote sign-in-state notification. It is idempotent: the same
// state applied twice yields the same stored session.
func (r *SessionReconciler) Apply(ctx context.Context, state domainauth.AuthState) (domainauth.Session, error) {
	if !state.SignedIn {
		r.mu.Lock()
		defer r.mu.Unlock()
		res, err := r.resolveLocalLocked(ctx)
		return res.Session, err
	}

	identity := domainauth.NormalizeEmail(state.Email)
	if identity == "" {
		identity = state.UserID
	}
	if identity == "" {
		return domainauth.Session{}, apperrors.Validation("remote state carries no identity")
	}

	r.mu.Lock()
	prev, err := r.sessions.Load(ctx)
	gen := r.gen
	r.mu.Unlock()
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("load session: %w", err)
	}

	// The role lookup happens outside the lock so a slow remote does not block readers.
	role := r.lookupRole(ctx, state.UserID, prev, identity)

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.sessions.Load(ctx)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("load session: %w", err)
	}
	if r.gen != gen {
		r.logger.DebugContext(ctx, "session changed during role lookup, dropping remote state",
			"identity", identity, "reason", state.Reason)
		return current, nil
	}

	now := r.now()
	expiresAt := now.Add(r.remoteTTL)
	if sameIdentity(current, identity) && !current.ExpiresAt.IsZero() && !current.Expired(now) {
		expiresAt = current.ExpiresAt
	}
	sess := domainauth.Session{
		Authenticated: true,
		Identity:      identity,
		UserID:        state.UserID,
		Role:          role,
		ExpiresAt:     expiresAt,
	}
	if err := r.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// ChangeFunc observes every reconciled remote notification.
type ChangeFunc func(ctx context.Context, state domainauth.AuthState, sess domainauth.Session)

// Run re-applies every remote sign-in-state notification until ctx is done.
// It returns nil on cancellation and immediately when no remote is configured.
func (r *SessionReconciler) Run(ctx context.Context, onChange ChangeFunc) error {
	if r.remote == nil {
		return nil
	}
	events := r.remote.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-events:
			if !ok {
				return nil
			}
			sess, err := r.Apply(ctx, state)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.WarnContext(ctx, "reconcile remote state failed",
					"reason", state.Reason, "error", err)
				continue
			}
			if onChange != nil {
				onChange(ctx, state, sess)
			}
		}
	}
}

// Establish writes a fresh session after a successful sign-in or sign-up.
// A principal without a role gets the cached role of the same identity, else the default.
// An unknown role is replaced by the default.
func (r *SessionReconciler) Establish(
	ctx context.Context,
	p domainauth.Principal,
	ttl time.Duration,
) (domainauth.Session, error) {
	identity := domainauth.NormalizeEmail(p.Email)
	if identity == "" {
		return domainauth.Session{}, apperrors.ValidationField("email", "is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	role := p.Role
	switch {
	case role == "":
		prev, err := r.sessions.Load(ctx)
		if err != nil {
			return domainauth.Session{}, fmt.Errorf("load session: %w", err)
		}
		role = cachedRole(prev, identity)
	case !role.Valid():
		r.logger.WarnContext(ctx, "unknown role, using default", "identity", identity, "role", role)
		role = domainauth.DefaultRole
	}

	sess := domainauth.Session{
		Authenticated: true,
		Identity:      identity,
		UserID:        p.UserID,
		Role:          role,
		ExpiresAt:     r.now().Add(ttl),
	}
	r.gen++
	if err := r.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Current returns the stored session without consulting the remote.
func (r *SessionReconciler) Current(ctx context.Context) (domainauth.Session, error) {
	sess, err := r.sessions.Load(ctx)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Clear signs the client out locally.
func (r *SessionReconciler) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if err := r.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Expire force-signs-out an expired session and reports whether it did.
func (r *SessionReconciler) Expire(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.resolveLocalLocked(ctx)
	if err != nil {
		return false, err
	}
	return res.Expired, nil
}

func (r *SessionReconciler) resolveLocalLocked(ctx context.Context) (Resolution, error) {
	sess, err := r.sessions.Load(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.Expired(r.now()) {
		return Resolution{Session: sess, Source: SourceLocal}, nil
	}

	r.logger.InfoContext(ctx, "session expired", "identity", sess.Identity, "expires_at", sess.ExpiresAt)
	r.gen++
	if err := r.sessions.Clear(ctx); err != nil {
		return Resolution{}, fmt.Errorf("clear expired session: %w", err)
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, ports.NoticeSessionExpired); err != nil {
			r.logger.WarnContext(ctx, "publish expiry notice failed", "error", err)
		}
	}
	return Resolution{Session: domainauth.Session{}, Source: SourceLocal, Expired: true}, nil
}

func (r *SessionReconciler) currentRemoteUser(ctx context.Context) (domainauth.AuthState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()
	return r.remote.CurrentUser(ctx)
}

func (r *SessionReconciler) lookupRole(
	ctx context.Context,
	uid string,
	prev domainauth.Session,
	identity string,
) domainauth.Role {
	if r.remote == nil || uid == "" {
		return cachedRole(prev, identity)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()

	role, err := r.remote.GetRole(lookupCtx, uid)
	if err != nil {
		fallback := cachedRole(prev, identity)
		r.logger.WarnContext(ctx, "role lookup failed, using fallback role",
			"uid", uid, "role", fallback, "error", err)
		return fallback
	}
	if !role.Valid() {
		r.logger.WarnContext(ctx, "unknown remote role, using default", "uid", uid, "role", role)
		return domainauth.DefaultRole
	}
	return role
}

func sameIdentity(prev domainauth.Session, identity string) bool {
	return prev.Authenticated && prev.Identity == identity
}

// cachedRole returns the stored role when it belongs to the same identity and is valid.
func cachedRole(prev domainauth.Session, identity string) domainauth.Role {
	if sameIdentity(prev, identity) && prev.Role.Valid() {
		return prev.Role
	}
	return domainauth.DefaultRole
}
