package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "user not found"},
			want: "user not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeRemoteUnavailable,
				Message: "remote identity service unavailable",
				Cause:   errors.New("dial tcp: i/o timeout"),
			},
			want: "remote identity service unavailable: dial tcp: i/o timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_IsMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("delete user: %w", Forbidden("administrators cannot delete themselves"))

	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("errors.Is(%v, ErrForbidden) = false, want true", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(%v, ErrNotFound) = true, want false", err)
	}
	if !IsForbidden(err) {
		t.Fatalf("IsForbidden(%v) = false", err)
	}
}

func TestAppError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := RemoteUnavailable(cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Errorf("errors.Is(err, ErrRemoteUnavailable) = false, want true")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"invalid credentials", InvalidCredentials("bad password"), ErrCodeInvalidCredentials},
		{"duplicate email", DuplicateEmail("a@x.io"), ErrCodeDuplicateEmail},
		{"forbidden", Forbidden("nope"), ErrCodeForbidden},
		{"unauthenticated", Unauthenticated("sign in"), ErrCodeUnauthenticated},
		{"not found", NotFoundf("user %q not found", "a@x.io"), ErrCodeNotFound},
		{"conflict", Conflict("exists"), ErrCodeConflict},
		{"validation", ValidationField("email", "is required"), ErrCodeValidation},
		{"internal", Internal("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if GetCode(tt.err) != tt.code {
				t.Errorf("GetCode() = %v, want %v", GetCode(tt.err), tt.code)
			}
		})
	}

	if got := DuplicateEmail("a@x.io").Field; got != "email" {
		t.Errorf("DuplicateEmail().Field = %q, want email", got)
	}
	if got := GetField(ValidationField("password", "is required")); got != "password" {
		t.Errorf("GetField() = %q, want password", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
	if Wrapf(nil, ErrCodeInternal, "x %d", 1) != nil {
		t.Fatal("Wrapf(nil) should return nil")
	}

	cause := errors.New("redis: connection pool timeout")
	err := Wrapf(cause, ErrCodeTimeout, "load session %s", "client-1")
	if err.Message != "load session client-1" {
		t.Errorf("Message = %q", err.Message)
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable")
	}
}

func TestGetCode_NonAppError(t *testing.T) {
	if code := GetCode(errors.New("plain")); code != "" {
		t.Errorf("GetCode(plain) = %q, want empty", code)
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true")
	}
}
