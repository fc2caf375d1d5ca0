package apierr

import (
	"errors"
)

// Kind is the closed set of failure shapes. It is decided once, at the
// normalization boundary, and never re-derived downstream.
type Kind int

const (
	// KindTransport: no HTTP response was obtained.
	KindTransport Kind = iota + 1
	// KindHTTP: the server answered with a non-2xx status.
	KindHTTP
	// KindValidation: the server answered and listed per-field problems.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Transport error codes.
const (
	CodeNetwork        = "NETWORK_ERROR"
	CodeConnRefused    = "ECONNREFUSED"
	CodeTimeout        = "TIMEOUT_ERROR"
	CodeNetworkGeneric = "ERR_NETWORK"
	CodeBadResponse    = "ERR_BAD_RESPONSE"
	CodeUnknown        = "UNKNOWN_ERROR"
)

type RequestInfo struct {
	URL     string `json:"url"`
	Method  string `json:"method"`
	BaseURL string `json:"baseURL"`
}

type ResponseInfo struct {
	Headers    map[string]string `json:"headers"`
	Data       any               `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
}

type RequestDetails struct {
	Headers map[string]string `json:"headers"`
	Data    any               `json:"data"`
	Params  map[string]string `json:"params"`
}

// Details is the normalized error every caller depends on. It is built
// once per failed call and not modified afterwards.
type Details struct {
	Status           int             `json:"status"` // 0 if no HTTP response obtained
	StatusText       string          `json:"statusText"`
	Message          string          `json:"message"`
	Data             any             `json:"data"`
	Code             string          `json:"code"`
	Config           RequestInfo     `json:"config"`
	Timestamp        string          `json:"timestamp"`
	ValidationErrors []any           `json:"validationErrors,omitempty"`
	Response         *ResponseInfo   `json:"response,omitempty"`
	Request          *RequestDetails `json:"request,omitempty"`
	Context          string          `json:"context,omitempty"`
}

// Error is returned by the API client for every failed call, whatever
// its origin.
type Error struct {
	Kind    Kind
	Message string
	Details *Details

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// IsAPIError reports whether the error carries normalized details.
func (e *Error) IsAPIError() bool { return e != nil && e.Details != nil }

// As extracts the normalized API error from err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if err == nil || !errors.As(err, &apiErr) || !apiErr.IsAPIError() {
		return nil, false
	}
	return apiErr, true
}

// GetDetails returns the normalized details carried by err, or nil.
func GetDetails(err error) *Details {
	if apiErr, ok := As(err); ok {
		return apiErr.Details
	}
	return nil
}
