package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// UserRecord is a directory entry. Email is the unique key.
// Password is stored as entered; credential hashing is out of scope for this layer.
type UserRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserView is the projection returned by user listings. It never carries a password.
type UserView struct {
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// View strips the password from the record.
func (u UserRecord) View() UserView {
	return UserView{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Principal returns the identity carried by the record.
func (u UserRecord) Principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role.OrDefault()}
}

// NewUser is the input for sign-up and administrative creation.
type NewUser struct {
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"      validate:"omitempty,role"`
}

// Normalize canonicalizes the email key in place.
func (n *NewUser) Normalize() {
	n.Email = NormalizeEmail(n.Email)
}

// Validate checks required fields and the role value.
func (n NewUser) Validate() error {
	return validateStruct(n)
}

// UserPatch carries a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Password  *string `json:"password,omitempty"  validate:"omitempty,min=1"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Role      *Role   `json:"role,omitempty"      validate:"omitempty,role"`
}

// Validate checks the role and password values when present.
func (p UserPatch) Validate() error {
	return validateStruct(p)
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Password == nil && p.FirstName == nil && p.LastName == nil && p.Role == nil
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *UserRecord) {
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}

// FieldError describes the first invalid field of an input.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		if err := validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return Role(fl.Field().String()).Valid()
		}); err != nil {
			panic(fmt.Sprintf("register role validation: %v", err))
		}
	})
	return validate
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func validateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{Field: fe.Field(), Reason: reasonFor(fe)}
	}
	return err
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "role":
		return "must be one of admin, inventory_manager, purchase_manager"
	case "min":
		return "must not be empty"
	default:
		return "is invalid"
	}
}
