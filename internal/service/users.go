package service

import (
	"context"
	"errors"
	"log/slog"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Directory ports.Directory // Required
	Logger    *slog.Logger    // Optional
}

// UserService is the administrative user CRUD. Every operation takes the
// caller's session explicitly.
type UserService struct {
	directory ports.Directory
	logger    *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(opts UserServiceOptions) (*UserService, error) {
	if opts.Directory == nil {
		return nil, errors.New("directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{directory: opts.Directory, logger: logger.With("component", "user_service")}, nil
}

func requireAdmin(caller domainauth.Session) error {
	if !caller.Authenticated {
		return apperrors.Unauthenticated("sign in required")
	}
	if !caller.IsAdmin() {
		return apperrors.Forbidden("administrator role required")
	}
	return nil
}

// List returns all users without passwords, ordered by email.
func (s *UserService) List(ctx context.Context, caller domainauth.Session) ([]domainauth.UserView, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domainauth.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out, nil
}

// Create adds a user. An existing email is DuplicateEmail.
func (s *UserService) Create(
	ctx context.Context,
	caller domainauth.Session,
	in domainauth.NewUser,
) (domainauth.UserView, error) {
	if err := requireAdmin(caller); err != nil {
		return domainauth.UserView{}, err
	}
	rec, err := s.directory.Create(ctx, in)
	if err != nil {
		return domainauth.UserView{}, err
	}
	s.logger.InfoContext(ctx, "user created", "by", caller.Identity, "email", rec.Email, "role", rec.Role)
	return rec.View(), nil
}

// Update applies a partial change. An absent user is NotFound and an empty patch is rejected.
func (s *UserService) Update(
	ctx context.Context,
	caller domainauth.Session,
	email string,
	patch domainauth.UserPatch,
) (domainauth.UserView, error) {
	if err := requireAdmin(caller); err != nil {
		return domainauth.UserView{}, err
	}
	if domainauth.NormalizeEmail(email) == "" {
		return domainauth.UserView{}, apperrors.ValidationField("email", "is required")
	}
	if patch.IsEmpty() {
		return domainauth.UserView{}, apperrors.Validation("patch changes nothing")
	}
	rec, err := s.directory.Update(ctx, email, patch)
	if err != nil {
		return domainauth.UserView{}, err
	}
	s.logger.InfoContext(ctx, "user updated", "by", caller.Identity, "email", rec.Email)
	return rec.View(), nil
}

// Delete removes a user. Administrators cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, caller domainauth.Session, email string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	target := domainauth.NormalizeEmail(email)
	if target == "" {
		return apperrors.ValidationField("email", "is required")
	}
	if target == domainauth.NormalizeEmail(caller.Identity) {
		return apperrors.Forbidden("administrators cannot delete their own account")
	}
	if err := s.directory.Delete(ctx, target); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "by", caller.Identity, "email", target)
	return nil
}
