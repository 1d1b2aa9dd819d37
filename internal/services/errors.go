package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrTransport        = errors.New("connection error")
	ErrTimeout          = errors.New("timeout")
	ErrProvider         = errors.New("provider error")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Kind values carried in the errorKind field of a response envelope.
const (
	KindConfiguration    = "configuration"
	KindValidation       = "validation"
	KindTransport        = "transport"
	KindTimeout          = "timeout"
	KindProvider         = "provider"
	KindUnknownOperation = "unknown_operation"
	KindInternal         = "internal"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports the wire classification for err. Unmarked errors are internal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrUnknownOperation):
		return KindUnknownOperation
	default:
		return KindInternal
	}
}

// remoteError rehydrates a failure received over the wire. The message is kept
// verbatim; the marker only drives errors.Is.
type remoteError struct {
	marker  error
	message string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Unwrap() error { return e.marker }

// FromKind rebuilds a classified error from a wire kind and message.
func FromKind(kind, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "request failed"
	}
	var marker error
	switch kind {
	case KindConfiguration:
		marker = ErrConfiguration
	case KindValidation:
		marker = ErrValidation
	case KindTransport:
		marker = ErrTransport
	case KindTimeout:
		marker = ErrTimeout
	case KindProvider:
		marker = ErrProvider
	case KindUnknownOperation:
		marker = ErrUnknownOperation
	default:
		return errors.New(message)
	}
	return &remoteError{marker: marker, message: message}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
