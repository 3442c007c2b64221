// Package localstore implements the client-scoped session store, notices and the
// simulated user directory on top of a ports.KeyValueStore.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/ports"
)

// Keys used inside a client namespace.
const (
	KeySession  = "session"
	KeyRedirect = "redirectAfterLogin"
	KeyNotice   = "notice"
	KeyUsers    = "usersData"
)

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	KV     ports.KeyValueStore // Required
	Clock  ports.Clock         // Required
	Logger *slog.Logger        // Optional
	// Grace keeps an expired session around long enough for the sweeper to
	// observe it and tell the user why they were signed out.
	Grace time.Duration
}

// SessionStore keeps the session record as a single JSON value.
type SessionStore struct {
	kv     ports.KeyValueStore
	clock  ports.Clock
	logger *slog.Logger
	grace  time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore constructs a SessionStore.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.KV == nil {
		return nil, errors.New("key-value store is required")
	}
	if opts.Clock == nil {
		return nil, errors.New("clock is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		kv:     opts.KV,
		clock:  opts.Clock,
		logger: logger.With("component", "session_store"),
		grace:  opts.Grace,
	}, nil
}

func (s *SessionStore) Load(ctx context.Context) (domainauth.Session, error) {
	data, err := s.kv.Get(ctx, KeySession)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return domainauth.Session{}, nil
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil || !sess.Valid() {
		// A corrupt record is treated as signed out and removed.
		s.logger.WarnContext(ctx, "discarding unreadable session record", "error", unmarshalErr)
		if delErr := s.kv.Delete(ctx, KeySession); delErr != nil {
			return domainauth.Session{}, fmt.Errorf("delete corrupt session: %w", delErr)
		}
		return domainauth.Session{}, nil
	}
	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if !sess.Valid() {
		return errors.New("authenticated session requires an identity and a known role")
	}
	if !sess.Authenticated {
		return s.Clear(ctx)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.clock.Now()) + s.grace
		if ttl <= 0 {
			// Already past expiry and grace; keep it until the sweeper clears it.
			ttl = 0
		}
	}

	if err := s.kv.Set(ctx, KeySession, data, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SessionStore) RememberRedirect(ctx context.Context, target string) error {
	if target == "" {
		return nil
	}
	if err := s.kv.Set(ctx, KeyRedirect, []byte(target), 0); err != nil {
		return fmt.Errorf("remember redirect: %w", err)
	}
	return nil
}

func (s *SessionStore) ConsumeRedirect(ctx context.Context) (string, bool, error) {
	data, err := s.kv.Get(ctx, KeyRedirect)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read redirect: %w", err)
	}
	if delErr := s.kv.Delete(ctx, KeyRedirect); delErr != nil {
		return "", false, fmt.Errorf("forget redirect: %w", delErr)
	}
	return string(data), len(data) > 0, nil
}
