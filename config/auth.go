package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	// TTL is the lifetime of a session without "remember me".
	TTL time.Duration `env:"TTL" envDefault:"24h"`
	// RememberTTL is the lifetime of a session with "remember me".
	RememberTTL time.Duration `env:"REMEMBER_TTL" envDefault:"720h"`
	// SweepInterval is how often a client runtime checks for an expired session.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	// StoreGrace keeps an expired record in Redis long enough for the sweeper to report it.
	StoreGrace time.Duration `env:"STORE_GRACE" envDefault:"1h"`
}

// Sanitize restores defaults for non-positive durations.
func (c *SessionConfig) Sanitize() {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.RememberTTL <= 0 {
		c.RememberTTL = 30 * 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.StoreGrace < 0 {
		c.StoreGrace = 0
	}
}

// RemoteMode selects the remote identity service.
type RemoteMode string

const (
	// RemoteModeNone runs on the local directory only.
	RemoteModeNone RemoteMode = "none"
	// RemoteModeFirebase uses the hosted identity toolkit and a document store.
	RemoteModeFirebase RemoteMode = "firebase"
)

// UnmarshalText implements encoding.TextUnmarshaler for RemoteMode.
func (m *RemoteMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "none", "firebase":
		*m = RemoteMode(v)
		return nil
	default:
		return fmt.Errorf("invalid RemoteMode: %q (valid options: none, firebase)", v)
	}
}

// DocumentBackend selects where remote user profiles are stored.
type DocumentBackend string

const (
	// DocumentsFirestore stores profiles in Cloud Firestore.
	DocumentsFirestore DocumentBackend = "firestore"
	// DocumentsPostgres stores profiles in the documents table.
	DocumentsPostgres DocumentBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for DocumentBackend.
func (d *DocumentBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "firestore", "postgres":
		*d = DocumentBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid DocumentBackend: %q (valid options: firestore, postgres)", v)
	}
}

// placeholderAPIKey is the value shipped in sample configuration.
const placeholderAPIKey = "YOUR_API_KEY"

// RemoteConfig configures the hosted identity service.
type RemoteConfig struct {
	Mode      RemoteMode      `env:"MODE"       envDefault:"none"`
	APIKey    string          `env:"API_KEY"`
	ProjectID string          `env:"PROJECT_ID"`
	Documents DocumentBackend `env:"DOCUMENTS"  envDefault:"firestore"`
	// Timeout bounds every remote call; a timeout falls back to the local path.
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"10s"`
	RetryCount   int           `env:"RETRY_COUNT"   envDefault:"2"`
	IdentityURL  string        `env:"IDENTITY_URL"`
	TokenURL     string        `env:"TOKEN_URL"`
	FirestoreURL string        `env:"FIRESTORE_URL"`
	// CredentialKey seals the persisted remote credential (hex-encoded 32 bytes or a passphrase).
	// Leave empty to store it unsealed.
	CredentialKey string `env:"CREDENTIAL_KEY"`
}

// Sanitize trims values and clamps the timeout.
func (c *RemoteConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.IdentityURL = strings.TrimRight(strings.TrimSpace(c.IdentityURL), "/")
	c.TokenURL = strings.TrimRight(strings.TrimSpace(c.TokenURL), "/")
	c.FirestoreURL = strings.TrimRight(strings.TrimSpace(c.FirestoreURL), "/")
	if c.Mode == "" {
		c.Mode = RemoteModeNone
	}
	if c.Documents == "" {
		c.Documents = DocumentsFirestore
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
}

// Enabled reports whether a remote adapter should be built. A missing or
// placeholder API key disables it without error.
func (c *RemoteConfig) Enabled() bool {
	if c.Mode != RemoteModeFirebase {
		return false
	}
	if c.APIKey == "" || c.APIKey == placeholderAPIKey {
		return false
	}
	return c.Documents != DocumentsFirestore || c.ProjectID != ""
}
