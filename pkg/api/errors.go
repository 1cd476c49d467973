package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem implements RFC 9457
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	type Alias Problem

	data := make(map[string]interface{})

	for k, v := range p.Extensions {
		data[k] = v
	}

	stdJSON, _ := json.Marshal(Alias(*p))
	_ = json.Unmarshal(stdJSON, &data)

	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewProblem creates a generic Problem
func NewProblem(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank", // Default as per RFC
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithExtension adds a custom key-value pair to the response
func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

// WithType sets the RFC "type" URI
func WithType(uri string) ProblemOption {
	return func(p *Problem) {
		p.Type = uri
	}
}

// ValidationError creates a rich validation error. Malformed inbound
// requests are surfaced immediately and never retried.
func ValidationError(validationErrors map[string]string) *Problem {
	return NewProblem(
		http.StatusBadRequest,
		"Validation Error",
		"One or more fields failed validation",
		WithExtension("errors", validationErrors),
	)
}

// BadRequestError creates a standard error for a bad request
func BadRequestError(detail string, opts ...ProblemOption) *Problem {
	return NewProblem(http.StatusBadRequest, "Bad Request", detail, opts...)
}

// NoProvidersError signals an empty registry snapshot at selection time.
func NoProvidersError() *Problem {
	return NewProblem(
		http.StatusServiceUnavailable,
		"No Providers Configured",
		"No LLM providers available. Please configure at least one credential.",
	)
}

// StoreUnavailableError signals that the dynamic registry store is down.
// Mutation endpoints require the store; read paths degrade to static-only.
func StoreUnavailableError(err error) *Problem {
	return NewProblem(
		http.StatusServiceUnavailable,
		"Dynamic Store Unavailable",
		"The dynamic model store is unreachable.",
		WithLog(err),
	)
}

// RegistrationError rejects a dynamic model whose live test call failed.
func RegistrationError(detail string, err error) *Problem {
	return NewProblem(
		http.StatusUnprocessableEntity,
		"Model Registration Failed",
		detail,
		WithLog(err),
	)
}

// UpstreamError creates a 502 gateway problem for provider failures that
// survived the fallback chain.
func UpstreamError(detail string, err error) *Problem {
	return NewProblem(http.StatusBadGateway, "Upstream Provider Error", detail, WithLog(err))
}

// NotFoundError creates a standard 404 problem
func NotFoundError(detail string) *Problem {
	return NewProblem(http.StatusNotFound, "Not Found", detail)
}

// UnauthorizedError creates a 401 problem
func UnauthorizedError(detail string) *Problem {
	return NewProblem(http.StatusUnauthorized, "Unauthorized", detail)
}

// RateLimitError creates a standard 429 problem
func RateLimitError(detail string) *Problem {
	return NewProblem(http.StatusTooManyRequests, "Too Many Requests", detail)
}
