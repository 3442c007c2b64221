package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in    string
		want  Role
		valid bool
	}{
		{in: "admin", want: RoleAdmin, valid: true},
		{in: " Inventory_Manager ", want: RoleInventoryManager, valid: true},
		{in: "purchase_manager", want: RolePurchaseManager, valid: true},
		{in: "superuser", want: Role("superuser"), valid: false},
		{in: "", want: Role(""), valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestRole_OrDefault(t *testing.T) {
	assert.Equal(t, RolePurchaseManager, RolePurchaseManager.OrDefault())
	assert.Equal(t, DefaultRole, Role("ghost").OrDefault())
	assert.Equal(t, RoleInventoryManager, Role("").OrDefault())
}

func TestSession_Valid(t *testing.T) {
	assert.True(t, Session{}.Valid())
	assert.True(t, Session{Authenticated: true, Identity: "a@x.io", Role: RoleAdmin}.Valid())
	assert.False(t, Session{Authenticated: true, Role: RoleAdmin}.Valid())
	assert.False(t, Session{Authenticated: true, Identity: "a@x.io", Role: "root"}.Valid())
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Session{Authenticated: true, Identity: "a@x.io", Role: RoleAdmin, ExpiresAt: now}

	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Second)))
	assert.False(t, Session{}.Expired(now.Add(time.Hour)), "anonymous sessions never expire")

	s.ExpiresAt = time.Time{}
	assert.False(t, s.Expired(now.Add(time.Hour)))
}

func TestAssignRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, AssignRole(true, RolePurchaseManager))
	assert.Equal(t, RoleAdmin, AssignRole(true, ""))
	assert.Equal(t, RolePurchaseManager, AssignRole(false, RolePurchaseManager))
	assert.Equal(t, RoleInventoryManager, AssignRole(false, ""))
	assert.Equal(t, RoleInventoryManager, AssignRole(false, "bogus"))
}

func TestNewUser_Validate(t *testing.T) {
	ok := NewUser{Email: "a@x.io", Password: "pw"}
	require.NoError(t, ok.Validate())

	var fe *FieldError

	err := NewUser{Password: "pw"}.Validate()
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Field)

	err = NewUser{Email: "not-an-email", Password: "pw"}.Validate()
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Field)

	err = NewUser{Email: "a@x.io"}.Validate()
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "password", fe.Field)

	err = NewUser{Email: "a@x.io", Password: "pw", Role: "root"}.Validate()
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "role", fe.Field)
}

func TestUserPatch(t *testing.T) {
	role := RolePurchaseManager
	first := "Nour"
	p := UserPatch{FirstName: &first, Role: &role}
	require.NoError(t, p.Validate())
	assert.False(t, p.IsEmpty())
	assert.True(t, UserPatch{}.IsEmpty())

	u := UserRecord{Email: "a@x.io", Password: "pw", FirstName: "Old", LastName: "Name", Role: RoleInventoryManager}
	p.Apply(&u)
	assert.Equal(t, "Nour", u.FirstName)
	assert.Equal(t, "Name", u.LastName)
	assert.Equal(t, "pw", u.Password)
	assert.Equal(t, RolePurchaseManager, u.Role)

	bad := Role("root")
	var fe *FieldError
	require.ErrorAs(t, UserPatch{Role: &bad}.Validate(), &fe)
	assert.Equal(t, "role", fe.Field)
}

func TestUserRecord_ViewOmitsPassword(t *testing.T) {
	u := UserRecord{Email: "a@x.io", Password: "secret", FirstName: "A", Role: RoleAdmin}
	v := u.View()
	assert.Equal(t, "a@x.io", v.Email)
	assert.Equal(t, RoleAdmin, v.Role)
	assert.NotContains(t, []string{v.Email, v.FirstName, v.LastName, string(v.Role)}, "secret")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.io", NormalizeEmail("  A@X.io "))
}

func TestSession_IsAdmin(t *testing.T) {
	assert.True(t, Session{Authenticated: true, Role: RoleAdmin}.IsAdmin())
	assert.False(t, Session{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Session{Authenticated: true, Role: RolePurchaseManager}.IsAdmin())
}
