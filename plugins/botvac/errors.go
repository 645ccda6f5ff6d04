package botvac

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotAuthorized      = errors.New("botvac: not authorized")
	ErrNoResult           = errors.New("botvac: no result")
	ErrInternalRemote     = errors.New("botvac: internal error")
	ErrUnconfiguredDevice = errors.New("botvac: no serial or secret")
)

// AuthenticationError is returned when the fleet service rejects a login.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "botvac authentication failed: " + e.Message
}

// DeviceListError is a domain error reported while listing robots.
type DeviceListError struct {
	Message string
}

func (e *DeviceListError) Error() string {
	return "botvac list robots: " + e.Message
}

// RemoteError carries the message field of a rejected command.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "botvac remote error: " + e.Message
}

type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("botvac: missing parameter %s", e.Name)
}

type ServiceUnknownError struct {
	Service string
}

func (e *ServiceUnknownError) Error() string {
	return fmt.Sprintf("botvac: service %q unknown", e.Service)
}

// TransportError wraps network failures and non-2xx responses.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("botvac %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("botvac %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying at the caller's discretion.
// Configuration problems (bad serial/secret, rejected credentials) are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.StatusCode == 0 {
			return true
		}
		return transportErr.StatusCode == 429 || transportErr.StatusCode >= 500
	}
	return errors.Is(err, ErrNoResult) || errors.Is(err, ErrInternalRemote)
}
