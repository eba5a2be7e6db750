package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
)

// maxErrorBody caps how much of an error response body is read for
// classification.
const maxErrorBody = 64 << 10

// FromResponse classifies a non-2xx HTTP response into a StatusError. The
// response body is consumed; the caller keeps responsibility for closing it.
func FromResponse(resp *http.Response, verb, path string) *StatusError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		klog.V(4).Infof("error response body for %s %s truncated: %v", verb, path, readErr)
	}

	var status *metav1.Status
	if len(body) > 0 {
		s := &metav1.Status{}
		if err := json.Unmarshal(body, s); err == nil && s.Kind == "Status" {
			status = s
		}
	}

	se := &StatusError{
		Code:   resp.StatusCode,
		Status: status,
		Verb:   verb,
		Path:   path,
	}
	if status == nil {
		se.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		se.Kind = KindBadRequest
	case resp.StatusCode == http.StatusUnauthorized:
		se.Kind = KindUnauthenticated
	case resp.StatusCode == http.StatusForbidden:
		se.Kind = KindForbidden
	case resp.StatusCode == http.StatusNotFound:
		se.Kind = KindNotFound
	case resp.StatusCode == http.StatusConflict:
		se.Kind = KindConflict
		if status != nil && status.Reason == metav1.StatusReasonAlreadyExists {
			se.Kind = KindAlreadyExists
		}
	case resp.StatusCode == http.StatusGone:
		se.Kind = KindGone
	case resp.StatusCode == http.StatusUnprocessableEntity:
		se.Kind = KindInvalid
	case resp.StatusCode == http.StatusTooManyRequests:
		se.Kind = KindThrottled
		se.Retryable = true
		se.RetryAfter = retryAfter(resp)
	case resp.StatusCode >= 500:
		se.Kind = KindServerError
		se.Retryable = true
	default:
		se.Kind = KindServerError
	}
	return se
}

// FromStatus classifies a Status object delivered in-band, as watch Error
// events are.
func FromStatus(status *metav1.Status) *StatusError {
	se := &StatusError{
		Code:   int(status.Code),
		Status: status,
	}
	switch {
	case status.Code == http.StatusGone || status.Reason == metav1.StatusReasonExpired || status.Reason == metav1.StatusReasonGone:
		se.Kind = KindGone
	case status.Reason == metav1.StatusReasonForbidden:
		se.Kind = KindForbidden
	case status.Reason == metav1.StatusReasonInvalid:
		se.Kind = KindInvalid
	case status.Reason == metav1.StatusReasonTimeout, status.Reason == metav1.StatusReasonServerTimeout:
		se.Kind = KindServerError
		se.Retryable = true
	case status.Code >= 500:
		se.Kind = KindServerError
		se.Retryable = true
	default:
		se.Kind = KindServerError
		se.Retryable = true
	}
	return se
}

// FromTransport classifies an error returned by the HTTP client itself,
// keeping cancellation distinct from genuine transport failure. Only the
// caller's own cancellation maps to Cancelled; a tripped request deadline is
// a retryable transport failure like any other slow or dead server.
func FromTransport(err error) *StatusError {
	if errors.Is(err, context.Canceled) {
		return NewCancelled(err)
	}
	return NewTransportError(err)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
