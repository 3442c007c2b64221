// Package ports defines interfaces (hexagonal ports) for session and access behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
)

// ErrKeyNotFound is returned by KeyValueStore.Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the per-client persistence surface. Every client profile
// gets its own namespace, the equivalent of a browser's local storage.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A zero ttl keeps the value until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SessionStore persists the client's session record and the post-login redirect target.
type SessionStore interface {
	// Load returns the stored session, or an anonymous session when none is stored.
	Load(ctx context.Context) (domainauth.Session, error)
	// Save writes the whole session record at once.
	Save(ctx context.Context, sess domainauth.Session) error
	Clear(ctx context.Context) error

	RememberRedirect(ctx context.Context, target string) error
	// ConsumeRedirect returns the remembered target and forgets it.
	ConsumeRedirect(ctx context.Context) (string, bool, error)
}

// Notice is a user-visible message such as "access denied".
type Notice string

const (
	NoticeAccessDenied   Notice = "access denied"
	NoticeSessionExpired Notice = "session expired"
)

// Notifier delivers user-visible notices to the client.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Clock abstracts time for expiration handling.
type Clock interface {
	Now() time.Time
}

// Directory is the single capability set over known users. The local and remote
// implementations are interchangeable behind it.
type Directory interface {
	// SignIn checks credentials. Unknown emails and wrong passwords both yield InvalidCredentials.
	SignIn(ctx context.Context, email, password string) (domainauth.Principal, error)
	// SignUp registers a new user. The first user of an empty directory becomes an administrator.
	SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error)

	Create(ctx context.Context, in domainauth.NewUser) (domainauth.UserRecord, error)
	Update(ctx context.Context, email string, patch domainauth.UserPatch) (domainauth.UserRecord, error)
	Delete(ctx context.Context, email string) error
	List(ctx context.Context) ([]domainauth.UserRecord, error)
}
