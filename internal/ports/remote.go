package ports

import (
	"context"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
)

// Credential is what the hosted identity service returns for a signed-in user.
type Credential struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IdentityClient is a stateless client of the hosted identity service.
type IdentityClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (Credential, error)
	SignUp(ctx context.Context, email, password string) (Credential, error)
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

// RemoteIdentity is the stateful per-client view of the hosted identity service.
type RemoteIdentity interface {
	SignIn(ctx context.Context, email, password string) (domainauth.Principal, error)
	SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error)
	SignOut(ctx context.Context) error
	// CurrentUser reports the signed-in user, if any.
	CurrentUser(ctx context.Context) (domainauth.AuthState, error)
	// Subscribe streams sign-in-state changes until ctx is done. The current state is sent first.
	Subscribe(ctx context.Context) <-chan domainauth.AuthState
	// GetRole reads the role stored for uid. Missing profiles yield the default role.
	GetRole(ctx context.Context, uid string) (domainauth.Role, error)
}

// Document is one record of a document collection.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// String returns the string value of field, or "".
func (d Document) String(field string) string {
	if v, ok := d.Fields[field].(string); ok {
		return v
	}
	return ""
}

// DocumentStore is the document side of the hosted service. Timestamps are assigned by the store.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Document, error)
	// FindBy returns documents whose field equals value.
	FindBy(ctx context.Context, collection, field string, value any) ([]Document, error)
}
