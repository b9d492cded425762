package k8sdns

import (
	"time"

	"github.com/golang/protobuf/ptypes"
	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TargetError is raised by ParseTarget for a malformed target URI. It is
// terminal for the resolver construction that produced it.
type TargetError struct {
	URI   string
	cause error
}

func (e *TargetError) Error() string {
	return errors.Wrapf(e.cause, "invalid target %q", e.URI).Error()
}

func (e *TargetError) Unwrap() error { return e.cause }

// IsTargetError reports whether err is a *TargetError.
func IsTargetError(err error) bool {
	_, ok := err.(*TargetError)
	return ok
}

// ConfigError is raised by NewBuilder (through its Options) for an
// out-of-range or otherwise invalid configuration option. It is terminal for provider
// construction.
type ConfigError struct {
	Option string
	cause  error
}

func (e *ConfigError) Error() string {
	return errors.Wrapf(e.cause, "invalid configuration option %q", e.Option).Error()
}

func (e *ConfigError) Unwrap() error { return e.cause }

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// TransportError is observed by the resolver core when a DNS lookup fails
// at the transport level. It is recoverable via a host-driven ResolveNow.
type TransportError struct {
	HostStr string
	cause   error
}

func (e *TransportError) Error() string {
	return errors.Wrapf(e.cause, "unable to resolve host %s", e.HostStr).Error()
}

func (e *TransportError) Unwrap() error { return e.cause }

// IsTransportError reports whether err is a *TransportError.
func IsTransportError(err error) bool {
	_, ok := err.(*TransportError)
	return ok
}

// EmptyResolutionError signals a DNS response that succeeded at the
// transport level but carried zero A records. Per spec, this is treated
// identically to TransportError so the host's retry discipline applies.
type EmptyResolutionError struct {
	HostStr string
}

func (e *EmptyResolutionError) Error() string {
	return "unable to resolve host " + e.HostStr + ": no records returned"
}

// IsEmptyResolutionError reports whether err is a *EmptyResolutionError.
func IsEmptyResolutionError(err error) bool {
	_, ok := err.(*EmptyResolutionError)
	return ok
}

// errorToStatus packs a TransportError/EmptyResolutionError into a gRPC
// status with an Unavailable code and a RetryInfo detail, for delivery via
// resolver.ClientConn.ReportError. Any other error is packed as Unknown.
func errorToStatus(err error, retryAfter time.Duration) *status.Status {
	switch err.(type) {
	case *TransportError, *EmptyResolutionError:
		s := status.New(codes.Unavailable, err.Error())
		detail := &errdetails.RetryInfo{
			RetryDelay: ptypes.DurationProto(retryAfter),
		}
		if withDetails, derr := s.WithDetails(detail); derr == nil {
			return withDetails
		}
		return s
	default:
		return status.New(codes.Unknown, err.Error())
	}
}
