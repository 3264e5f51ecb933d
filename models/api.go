package models

// FieldError is a single field-level validation failure reported by the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Errors    []FieldError `json:"errors,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// Envelope wraps single-object responses.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page wraps list responses. Pagination is nil when the server omits it.
type Page[T any] struct {
	Success    bool        `json:"success"`
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// MessageResponse is the payload of mutations that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}
