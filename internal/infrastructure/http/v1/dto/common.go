// Package dto provides request and response shapes for the HTTP API.
// Read models serialize straight from the domain structs; dto covers
// inbound payloads and the envelopes that do not map one-to-one.
package dto

import (
	"vintrack/internal/core/id"
)

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// NewListResponse wraps items with their count.
func NewListResponse(items any, count int) ListResponse {
	return ListResponse{Items: items, Count: count}
}
