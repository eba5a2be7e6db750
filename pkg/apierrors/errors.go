// Package apierrors defines the typed error taxonomy for API operations and
// the classifier that maps HTTP responses onto it.
package apierrors

import (
	"errors"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Kind is the classified error category of a failed operation.
type Kind string

const (
	KindBadRequest           Kind = "BadRequest"
	KindUnauthenticated      Kind = "Unauthenticated"
	KindForbidden            Kind = "Forbidden"
	KindNotFound             Kind = "NotFound"
	KindConflict             Kind = "Conflict"
	KindAlreadyExists        Kind = "AlreadyExists"
	KindGone                 Kind = "Gone"
	KindInvalid              Kind = "Invalid"
	KindThrottled            Kind = "Throttled"
	KindServerError          Kind = "ServerError"
	KindTransportError       Kind = "TransportError"
	KindMalformedResponse    Kind = "MalformedResponse"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindUnsupportedOperation Kind = "UnsupportedOperation"
	KindCancelled            Kind = "Cancelled"
)

// StatusError is the error type surfaced for every failed API operation. It
// carries the HTTP status code, the decoded Status body if the server sent
// one, and the originating verb+path for diagnostics.
type StatusError struct {
	Kind Kind

	// Code is the HTTP status code, zero when the failure never reached the
	// server or produced no response.
	Code int

	// Status is the decoded body, if the server replied with a Status object.
	Status *metav1.Status

	// Verb and Path identify the request that failed.
	Verb string
	Path string

	// Retryable marks failures a retry loop may reasonably repeat.
	Retryable bool

	// RetryAfter is the server-requested delay on throttled responses.
	RetryAfter time.Duration

	// Message supplements Status for failures without a decoded body.
	Message string

	cause error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" && e.Status != nil {
		msg = e.Status.Message
	}
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.Verb != "" || e.Path != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Verb, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *StatusError) Unwrap() error { return e.cause }

// WithRequest returns a copy annotated with the originating verb and path.
func (e *StatusError) WithRequest(verb, path string) *StatusError {
	out := *e
	out.Verb = verb
	out.Path = path
	return &out
}

// IsKind reports whether err is a StatusError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Kind == kind
}

func IsNotFound(err error) bool       { return IsKind(err, KindNotFound) }
func IsAlreadyExists(err error) bool  { return IsKind(err, KindAlreadyExists) }
func IsConflict(err error) bool       { return IsKind(err, KindConflict) || IsKind(err, KindAlreadyExists) }
func IsGone(err error) bool           { return IsKind(err, KindGone) }
func IsForbidden(err error) bool      { return IsKind(err, KindForbidden) }
func IsCancelled(err error) bool      { return IsKind(err, KindCancelled) }
func IsInvalidRequest(err error) bool { return IsKind(err, KindInvalidRequest) }

// IsRetryable reports whether a retry loop may repeat the operation that
// produced err. Unclassified errors are not retryable.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Retryable
}

// NewInvalidRequest marks a request that was rejected before any network
// I/O: empty names, unregistered subresources, malformed selectors.
func NewInvalidRequest(format string, args ...interface{}) *StatusError {
	return &StatusError{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedOperation marks a verb dispatched on a handle whose
// descriptor lacks the corresponding capability.
func NewUnsupportedOperation(verb, kind string) *StatusError {
	return &StatusError{
		Kind:    KindUnsupportedOperation,
		Message: fmt.Sprintf("resource %s does not support %s", kind, verb),
	}
}

// NewCancelled wraps a context cancellation. Cancellation is distinguished
// from transport failure and is never retryable.
func NewCancelled(cause error) *StatusError {
	return &StatusError{Kind: KindCancelled, Message: "operation cancelled", cause: cause}
}

// NewTransportError wraps a failure below the HTTP layer: dial errors,
// resets, unexpected stream ends.
func NewTransportError(cause error) *StatusError {
	return &StatusError{Kind: KindTransportError, Retryable: true, Message: cause.Error(), cause: cause}
}

// NewMalformedResponse marks an undecodable server response. The snippet is
// truncated payload kept for diagnostics; callers must never pass
// credentials or headers through it.
func NewMalformedResponse(cause error, snippet []byte) *StatusError {
	const maxSnippet = 256
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return &StatusError{
		Kind:    KindMalformedResponse,
		Message: fmt.Sprintf("undecodable response body: %v (payload %q)", cause, snippet),
		cause:   cause,
	}
}
