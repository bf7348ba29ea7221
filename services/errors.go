package services

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	KindAuthenticationExpired ErrorKind = "authentication_expired" // 401
	KindForbidden             ErrorKind = "forbidden"              // 403
	KindNotFound              ErrorKind = "not_found"              // 404
	KindValidationFailed      ErrorKind = "validation_failed"      // 422
	KindServerError           ErrorKind = "server_error"           // 5xx
	KindUnexpectedStatus      ErrorKind = "unexpected_status"      // any other non-2xx
	KindNetworkUnreachable    ErrorKind = "network_unreachable"    // sent, no response
	KindRequestConfiguration  ErrorKind = "request_configuration"  // never sent
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrAuthenticationExpired = &APIError{Kind: KindAuthenticationExpired}
	ErrForbidden             = &APIError{Kind: KindForbidden}
	ErrNotFound              = &APIError{Kind: KindNotFound}
	ErrValidationFailed      = &APIError{Kind: KindValidationFailed}
	ErrServerError           = &APIError{Kind: KindServerError}
	ErrUnexpectedStatus      = &APIError{Kind: KindUnexpectedStatus}
	ErrNetworkUnreachable    = &APIError{Kind: KindNetworkUnreachable}
	ErrRequestConfiguration  = &APIError{Kind: KindRequestConfiguration}
)

// APIError is returned by every failed ApiClient call.
type APIError struct {
	Kind   ErrorKind
	Status int // 0 when no response was received
	Method string
	URL    string
	// Message is the backend's "message" field, if any.
	Message string
	// FieldErrors is only set for KindValidationFailed.
	FieldErrors map[string][]string
	// Authenticated is true when the request carried a bearer token.
	Authenticated bool

	err error
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthenticationExpired
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidationFailed
	case status >= 500:
		return KindServerError
	default:
		return KindUnexpectedStatus
	}
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, "%d ", e.Status)
	}
	b.WriteString(string(e.Kind))
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.err != nil:
		b.WriteString(": " + e.err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Is matches any *APIError of the same Kind.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Kind == e.Kind
}

// Fields returns the names of the fields that failed validation, sorted.
func (e *APIError) Fields() []string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
