package tutorapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorKind classifies why a request failed.
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindParse      ErrorKind = "parse"
)

// User facing defaults, used when the server does not say anything better.
const (
	MsgNetwork    = "Network error. Please check your connection and try again."
	MsgAuth       = "Your session has expired. Please log in again."
	MsgValidation = "The request contains invalid data."
	MsgServer     = "Server error occurred"
	MsgParse      = "Could not parse server response"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("tutorapi: invalid configuration")

	// ErrNoRefreshToken is returned when a 401 cannot be recovered because no refresh token is stored.
	ErrNoRefreshToken = errors.New("tutorapi: no refresh token")

	// ErrRefreshFailed is returned when the refresh endpoint rejected the exchange.
	ErrRefreshFailed = errors.New("tutorapi: token refresh failed")

	// ErrCircuitOpen is returned when the circuit breaker short-circuits a dispatch.
	ErrCircuitOpen = errors.New("tutorapi: circuit open")
)

// DefaultMessage is the generic message for the kind.
func (k ErrorKind) DefaultMessage() string {
	switch k {
	case ErrorKindNetwork:
		return MsgNetwork
	case ErrorKindAuth:
		return MsgAuth
	case ErrorKindValidation:
		return MsgValidation
	case ErrorKindServer:
		return MsgServer
	case ErrorKindParse:
		return MsgParse
	default:
		return MsgServer
	}
}

// Retryable reports whether failures of this kind are retried with backoff.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindNetwork || k == ErrorKindServer
}

// classifyStatus maps an HTTP status to an ErrorKind; "" means success.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401:
		return ErrorKindAuth
	case status >= 400 && status < 500:
		return ErrorKindValidation
	case status >= 500:
		return ErrorKindServer
	default:
		return ""
	}
}

// ClientError describes a failed request.
type ClientError struct {
	Kind       ErrorKind
	Message    string
	Cause      error
	RequestID  string
	Method     string
	Endpoint   string
	StatusCode int
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// failureDetail is the request context behind a failed envelope. It stays
// out of the JSON form and surfaces through Response.Err.
type failureDetail struct {
	Cause      error
	RequestID  string
	Method     string
	Endpoint   string
	Attempt    int
	MaxRetries int
	At         time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *ClientError of the same Kind.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*ClientError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Kind: %s\n", e.Kind)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// deriveErrorMessage picks the most specific message a failed response body
// offers: detail, error, message, then a Django REST Framework field-error
// map. Anything else falls back to the kind's generic message.
func deriveErrorMessage(body []byte, kind ErrorKind) string {
	var payload map[string]any
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return kind.DefaultMessage()
	}

	for _, key := range []string{"detail", "error", "message"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	if msg := fieldErrors(payload); msg != "" {
		return msg
	}
	return kind.DefaultMessage()
}

// fieldErrors renders {"email": ["taken"], "age": "too low"} as
// "age: too low; email: taken". Keys are sorted so output is stable.
func fieldErrors(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		if envelopeKeys[field] {
			continue
		}
		msgs := flattenMessages(payload[field])
		if len(msgs) == 0 {
			continue
		}
		joined := strings.Join(msgs, ", ")
		if field == "non_field_errors" {
			parts = append(parts, joined)
			continue
		}
		parts = append(parts, field+": "+joined)
	}
	return strings.Join(parts, "; ")
}

// envelopeKeys are envelope fields, never field errors.
var envelopeKeys = map[string]bool{
	"success":   true,
	"timestamp": true,
	"data":      true,
	"status":    true,
	"code":      true,
}

func flattenMessages(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flattenMessages(item)...)
		}
		return out
	case map[string]any:
		if msg := fieldErrors(val); msg != "" {
			return []string{msg}
		}
	}
	return nil
}
