package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/target/stockgate/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "app error", err: apperrors.ErrInvalidCredentials, want: "invalid_credentials"},
		{
			name: "wrapped app error",
			err:  fmt.Errorf("sign in: %w", apperrors.RemoteUnavailable(goerrors.New("dial"))),
			want: "remote_unavailable",
		},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "typed", err: fmt.Errorf("dial: %w", &net.AddrError{Err: "bad"}), want: "net_addrerror"},
		{name: "plain", err: goerrors.New("boom"), want: "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
