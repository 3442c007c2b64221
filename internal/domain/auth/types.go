// Package auth contains domain-level types for roles, sessions and page access.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// The string form is what gets persisted in the session record and the user directory.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleInventoryManager Role = "inventory_manager"
	RolePurchaseManager  Role = "purchase_manager"
)

// DefaultRole is assigned whenever no valid role is known for an identity.
const DefaultRole = RoleInventoryManager

// AllRoles returns every role in a stable order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleInventoryManager, RolePurchaseManager}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInventoryManager, RolePurchaseManager:
		return true
	default:
		return false
	}
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// OrDefault returns r when valid, DefaultRole otherwise.
func (r Role) OrDefault() Role {
	if r.Valid() {
		return r
	}
	return DefaultRole
}

// Label is the human readable name shown next to the signed-in user.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "System administrator"
	case RoleInventoryManager:
		return "Inventory manager"
	case RolePurchaseManager:
		return "Purchase manager"
	default:
		return string(r)
	}
}

// Session is the per-client record persisted in the session store.
// It is always written as a single value so readers never observe a partial session.
type Session struct {
	Authenticated bool      `json:"authenticated"`
	Identity      string    `json:"identity,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Role          Role      `json:"role,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Valid reports whether the session satisfies its invariant:
// an authenticated session always carries an identity and a known role.
func (s Session) Valid() bool {
	if !s.Authenticated {
		return true
	}
	return s.Identity != "" && s.Role.Valid()
}

// Expired returns true when an authenticated session has passed its expiration.
// Sessions without an expiration never expire.
func (s Session) Expired(now time.Time) bool {
	return s.Authenticated && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IsAdmin returns true if the session belongs to an authenticated administrator.
func (s Session) IsAdmin() bool { return s.Authenticated && s.Role == RoleAdmin }

// Principal is the identity returned by a successful credential check.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// AuthState is a sign-in-state notification from the remote identity service.
// The same state may be delivered many times (startup, sign-in, token refresh).
type AuthState struct {
	SignedIn bool
	UserID   string
	Email    string
	Reason   StateReason
}

// StateReason says why an AuthState was emitted.
type StateReason string

const (
	ReasonStartup StateReason = "startup"
	ReasonSignIn  StateReason = "sign_in"
	ReasonRefresh StateReason = "token_refresh"
	ReasonSignOut StateReason = "sign_out"
)

// AssignRole applies the first-user bootstrap rule: the first user created in an
// empty directory is always an administrator. Otherwise the requested role is kept,
// falling back to DefaultRole.
func AssignRole(directoryEmpty bool, requested Role) Role {
	if directoryEmpty {
		return RoleAdmin
	}
	return requested.OrDefault()
}

// NormalizeEmail lowercases and trims an email so it can be used as a directory key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
