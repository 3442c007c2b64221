package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

// LocalDirectory is the offline directory. Put stores a record as is and is
// used to mirror remote changes.
type LocalDirectory interface {
	ports.Directory
	Put(ctx context.Context, rec domainauth.UserRecord) error
}

// FallbackDirectoryOptions groups dependencies for FallbackDirectory.
type FallbackDirectoryOptions struct {
	Local   LocalDirectory  // Required
	Remote  ports.Directory // Optional: nil means local-only
	Timeout time.Duration   // Optional: bounds each remote call
	Logger  *slog.Logger    // Optional
}

// FallbackDirectory tries the remote directory first and falls back to the
// local one on any remote failure.
type FallbackDirectory struct {
	local   LocalDirectory
	remote  ports.Directory
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Directory = (*FallbackDirectory)(nil)

// NewFallbackDirectory constructs a FallbackDirectory.
func NewFallbackDirectory(opts FallbackDirectoryOptions) (*FallbackDirectory, error) {
	if opts.Local == nil {
		return nil, errors.New("local directory is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackDirectory{
		local:   opts.Local,
		remote:  opts.Remote,
		timeout: timeout,
		logger:  logger.With("component", "fallback_directory"),
	}, nil
}

// RemoteEnabled reports whether a remote directory is configured.
func (d *FallbackDirectory) RemoteEnabled() bool { return d.remote != nil }

func (d *FallbackDirectory) SignIn(ctx context.Context, email, password string) (domainauth.Principal, error) {
	if d.remote != nil {
		p, err := withTimeout(ctx, d.timeout, func(ctx context.Context) (domainauth.Principal, error) {
			return d.remote.SignIn(ctx, email, password)
		})
		if err == nil {
			return p, nil
		}
		d.fallback(ctx, "sign_in", err)
	}
	return d.local.SignIn(ctx, email, password)
}

func (d *FallbackDirectory) SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error) {
	if d.remote != nil {
		p, err := withTimeout(ctx, d.timeout, func(ctx context.Context) (domainauth.Principal, error) {
			return d.remote.SignUp(ctx, in)
		})
		if err == nil {
			return p, nil
		}
		d.fallback(ctx, "sign_up", err)
	}
	return d.local.SignUp(ctx, in)
}

func (d *FallbackDirectory) Create(ctx context.Context, in domainauth.NewUser) (domainauth.UserRecord, error) {
	if d.remote != nil {
		rec, err := withTimeout(ctx, d.timeout, func(ctx context.Context) (domainauth.UserRecord, error) {
			return d.remote.Create(ctx, in)
		})
		if err == nil {
			return rec, nil
		}
		d.fallback(ctx, "create", err)
	}
	return d.local.Create(ctx, in)
}

// Update mirrors a successful remote update into the local directory.
func (d *FallbackDirectory) Update(
	ctx context.Context,
	email string,
	patch domainauth.UserPatch,
) (domainauth.UserRecord, error) {
	if d.remote != nil {
		rec, err := withTimeout(ctx, d.timeout, func(ctx context.Context) (domainauth.UserRecord, error) {
			return d.remote.Update(ctx, email, patch)
		})
		if err == nil {
			d.mirrorUpdate(ctx, email, patch, rec)
			return rec, nil
		}
		d.fallback(ctx, "update", err)
	}
	return d.local.Update(ctx, email, patch)
}

// Delete mirrors a successful remote delete into the local directory.
func (d *FallbackDirectory) Delete(ctx context.Context, email string) error {
	if d.remote != nil {
		_, err := withTimeout(ctx, d.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d.remote.Delete(ctx, email)
		})
		if err == nil {
			if localErr := d.local.Delete(ctx, email); localErr != nil && !apperrors.IsNotFound(localErr) {
				d.logger.WarnContext(ctx, "mirror remote delete failed", "email", email, "error", localErr)
			}
			return nil
		}
		d.fallback(ctx, "delete", err)
	}
	return d.local.Delete(ctx, email)
}

func (d *FallbackDirectory) List(ctx context.Context) ([]domainauth.UserRecord, error) {
	if d.remote != nil {
		users, err := withTimeout(ctx, d.timeout, func(ctx context.Context) ([]domainauth.UserRecord, error) {
			return d.remote.List(ctx)
		})
		if err == nil {
			return users, nil
		}
		d.fallback(ctx, "list", err)
	}
	return d.local.List(ctx)
}

func (d *FallbackDirectory) mirrorUpdate(
	ctx context.Context,
	email string,
	patch domainauth.UserPatch,
	remote domainauth.UserRecord,
) {
	_, err := d.local.Update(ctx, email, patch)
	if err == nil {
		return
	}
	if apperrors.IsNotFound(err) {
		remote.Password = ""
		if err = d.local.Put(ctx, remote); err == nil {
			return
		}
	}
	d.logger.WarnContext(ctx, "mirror remote update failed", "email", email, "error", err)
}

func (d *FallbackDirectory) fallback(ctx context.Context, op string, err error) {
	d.logger.WarnContext(ctx, "remote directory failed, using local directory", "op", op, "error", err)
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		var zero T
		return zero, apperrors.RemoteUnavailable(err)
	}
	return v, err
}
