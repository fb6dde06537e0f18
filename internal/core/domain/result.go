package domain

import "github.com/google/uuid"

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// SystemUserID scopes events and audit fields that are not owned by a tenant.
const SystemUserID = "system"

// Result is the envelope returned to CRUD layers and admin tooling.
// Internal retry and backoff details never appear here.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(message string, data any) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

// Failed wraps an error in a failure envelope.
func Failed(err error) *Result {
	r := &Result{Success: false}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
