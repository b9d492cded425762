package k8sdns

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrors_IsPredicates(t *testing.T) {
	t.Parallel()

	target := &TargetError{URI: "k8s-dns://bad", cause: errors.New("boom")}
	assert.True(t, IsTargetError(target))
	assert.False(t, IsConfigError(target))

	cfg := &ConfigError{Option: "priority", cause: errors.New("boom")}
	assert.True(t, IsConfigError(cfg))
	assert.False(t, IsTransportError(cfg))

	transport := &TransportError{HostStr: "svc.example", cause: errors.New("timeout")}
	assert.True(t, IsTransportError(transport))
	assert.False(t, IsEmptyResolutionError(transport))

	empty := &EmptyResolutionError{HostStr: "svc.example"}
	assert.True(t, IsEmptyResolutionError(empty))
	assert.False(t, IsTargetError(empty))
}

func TestErrors_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("root cause")
	target := &TargetError{URI: "k8s-dns://bad", cause: cause}

	assert.ErrorIs(t, target, cause)
	assert.Contains(t, target.Error(), "root cause")
	assert.Contains(t, target.Error(), "k8s-dns://bad")
}

func TestErrorToStatus_TransportError(t *testing.T) {
	t.Parallel()

	err := &TransportError{HostStr: "svc.example", cause: errors.New("timeout")}
	s := errorToStatus(err, 5*time.Second)

	assert.Equal(t, codes.Unavailable, s.Code())
	require.Len(t, s.Details(), 1)
}

func TestErrorToStatus_EmptyResolutionError(t *testing.T) {
	t.Parallel()

	err := &EmptyResolutionError{HostStr: "svc.example"}
	s := errorToStatus(err, 0)

	assert.Equal(t, codes.Unavailable, s.Code())
}

func TestErrorToStatus_UnknownError(t *testing.T) {
	t.Parallel()

	s := errorToStatus(errors.New("something else"), 0)
	assert.Equal(t, codes.Unknown, s.Code())
}

func TestErrorToStatus_RoundTripsThroughStatusFromError(t *testing.T) {
	t.Parallel()

	err := &TransportError{HostStr: "svc.example", cause: errors.New("timeout")}
	wrapped := errorToStatus(err, time.Second).Err()

	s, ok := status.FromError(wrapped)
	require.True(t, ok)
	assert.Equal(t, codes.Unavailable, s.Code())
}
