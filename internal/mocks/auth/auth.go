// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.KeyValueStore  = (*MemoryKV)(nil)
	_ ports.Notifier       = (*RecordingNotifier)(nil)
	_ ports.RemoteIdentity = (*FakeRemote)(nil)
	_ ports.SessionStore   = (*FailingSessionStore)(nil)
)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKV is an in-memory key-value store. When Clock is set, TTLs are honored against it.
type MemoryKV struct {
	Clock ports.Clock

	mu      sync.Mutex
	entries map[string]kvEntry
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV(clock ports.Clock) *MemoryKV {
	return &MemoryKV{Clock: clock, entries: make(map[string]kvEntry)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ports.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && m.Clock != nil && !m.Clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, ports.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 && m.Clock != nil {
		e.expiresAt = m.Clock.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Raw returns the stored bytes without TTL checks, for assertions.
func (m *MemoryKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.value, ok
}

// RecordingNotifier captures notices in order.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []ports.Notice
}

func (r *RecordingNotifier) Notify(_ context.Context, n ports.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// Notices returns a copy of the captured notices.
func (r *RecordingNotifier) Notices() []ports.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Notice(nil), r.notices...)
}

// FakeRemote is a scriptable RemoteIdentity. Unset funcs fall back to simple defaults:
// signed out, default role, and RemoteUnavailable for credential calls.
type FakeRemote struct {
	SignInFunc      func(ctx context.Context, email, password string) (domainauth.Principal, error)
	SignUpFunc      func(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error)
	SignOutFunc     func(ctx context.Context) error
	CurrentUserFunc func(ctx context.Context) (domainauth.AuthState, error)
	GetRoleFunc     func(ctx context.Context, uid string) (domainauth.Role, error)

	// Events is returned by Subscribe when set.
	Events chan domainauth.AuthState

	mu           sync.Mutex
	roleLookups  int
	signOutCalls int
}

// ErrRemoteDown is the default error of FakeRemote credential calls.
var ErrRemoteDown = errors.New("remote down")

func (f *FakeRemote) SignIn(ctx context.Context, email, password string) (domainauth.Principal, error) {
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}
	return domainauth.Principal{}, ErrRemoteDown
}

func (f *FakeRemote) SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error) {
	if f.SignUpFunc != nil {
		return f.SignUpFunc(ctx, in)
	}
	return domainauth.Principal{}, ErrRemoteDown
}

func (f *FakeRemote) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx)
	}
	return nil
}

func (f *FakeRemote) CurrentUser(ctx context.Context) (domainauth.AuthState, error) {
	if f.CurrentUserFunc != nil {
		return f.CurrentUserFunc(ctx)
	}
	return domainauth.AuthState{Reason: domainauth.ReasonStartup}, nil
}

func (f *FakeRemote) Subscribe(ctx context.Context) <-chan domainauth.AuthState {
	if f.Events != nil {
		return f.Events
	}
	ch := make(chan domainauth.AuthState)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (f *FakeRemote) GetRole(ctx context.Context, uid string) (domainauth.Role, error) {
	f.mu.Lock()
	f.roleLookups++
	f.mu.Unlock()
	if f.GetRoleFunc != nil {
		return f.GetRoleFunc(ctx, uid)
	}
	return domainauth.DefaultRole, nil
}

// RoleLookups returns how many times GetRole was called.
func (f *FakeRemote) RoleLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleLookups
}

// SignOutCalls returns how many times SignOut was called.
func (f *FakeRemote) SignOutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// FailingSessionStore returns Err from every call. Used to exercise storage failure paths.
type FailingSessionStore struct {
	Err error
}

func (s FailingSessionStore) Load(context.Context) (domainauth.Session, error) {
	return domainauth.Session{}, s.Err
}

func (s FailingSessionStore) Save(context.Context, domainauth.Session) error { return s.Err }

func (s FailingSessionStore) Clear(context.Context) error { return s.Err }

func (s FailingSessionStore) RememberRedirect(context.Context, string) error { return s.Err }

func (s FailingSessionStore) ConsumeRedirect(context.Context) (string, bool, error) {
	return "", false, s.Err
}

// RecordedMetric is one call captured by RecordingSink.
type RecordedMetric struct {
	Kind  string // count, gauge or timing
	Name  string
	Value float64
	Tags  map[string]string
}

// RecordingSink captures StatsD calls in memory.
type RecordingSink struct {
	mu      sync.Mutex
	metrics []RecordedMetric
}

var _ statsd.Sink = (*RecordingSink)(nil)

func (s *RecordingSink) record(m RecordedMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

func (s *RecordingSink) Count(name string, value int64, tags map[string]string) {
	s.record(RecordedMetric{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

func (s *RecordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.record(RecordedMetric{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

func (s *RecordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.record(RecordedMetric{Kind: "timing", Name: name, Value: float64(value.Milliseconds()), Tags: tags})
}

// Named returns the recorded metrics with the given name, in call order.
func (s *RecordingSink) Named(name string) []RecordedMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedMetric
	for _, m := range s.metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
