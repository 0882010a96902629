package tutorapi

import (
	"encoding/json"
	"net/http"
)

// Response is the normalized envelope every request resolves to. Success
// implies Error is empty; a failed response carries a non-empty, human
// readable Error and a zero Data.
type Response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`

	// Kind and StatusCode describe a failure in more detail than Error.
	Kind       ErrorKind `json:"-"`
	StatusCode int       `json:"-"`

	detail *failureDetail
}

// Err returns the failure as a *ClientError, or nil for a successful response.
func (r Response[T]) Err() error {
	if r.Success {
		return nil
	}
	err := &ClientError{Kind: r.Kind, Message: r.Error, StatusCode: r.StatusCode}
	if d := r.detail; d != nil {
		err.Cause = d.Cause
		err.RequestID = d.RequestID
		err.Method = d.Method
		err.Endpoint = d.Endpoint
		err.Attempt = d.Attempt
		err.MaxRetries = d.MaxRetries
		err.Timestamp = d.At
		err.Duration = d.Duration
	}
	return err
}

// RawResponse is the untyped envelope returned by (*Client).Request.
type RawResponse = Response[json.RawMessage]

// RequestOptions describes one logical request.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	Header http.Header
	// Body is sent as-is. JSON unless ContentType says otherwise.
	Body []byte
	// ContentType overrides the JSON content type, e.g. for multipart uploads.
	ContentType string
	// Attempt is the starting attempt counter. A non-zero value marks the
	// request as a replay and disables the token refresh on 401.
	Attempt int
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}

// Middleware wraps every dispatched HTTP attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Navigator is told when the session is gone for good and the user must
// sign in again.
type Navigator interface {
	RedirectToLogin(reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

func (f NavigatorFunc) RedirectToLogin(reason string) { f(reason) }

type noopNavigator struct{}

func (noopNavigator) RedirectToLogin(string) {}

// Option configures a Client.
type Option func(*Client)
