package errors

import (
	"fmt"
	"strings"
)

// AuthError represents a failed login against the panel
type AuthError struct {
	Status  int
	Message string
}

// Error returns the error message
func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("panel authentication failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("panel authentication failed: %s", e.Message)
}

// APIError represents a request the panel rejected with an HTTP error status
type APIError struct {
	Status int
	Body   string
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("panel API error (status %d): %s", e.Status, e.Body)
}

// NetworkError represents a transport-level failure talking to the panel
type NetworkError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a timed-out panel request
type TimeoutError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// DecodeError represents a malformed JSON body from the panel
type DecodeError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Op, e.Err)
}

// Unwrap returns the underlying decode error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DuplicateClientError represents a client email that already exists on the panel.
// InboundRemark is set when the duplicate was found by a pre-flight scan;
// ExistingEmail is set when the panel itself reported the duplicate.
type DuplicateClientError struct {
	Email         string
	InboundRemark string
	ExistingEmail string
}

// Error returns the error message
func (e *DuplicateClientError) Error() string {
	if e.InboundRemark != "" {
		return fmt.Sprintf("client %q already exists in inbound %q", e.Email, e.InboundRemark)
	}
	if e.ExistingEmail != "" {
		return fmt.Sprintf("panel already holds a client with email %q", e.ExistingEmail)
	}
	return fmt.Sprintf("client %q already exists on the panel", e.Email)
}

// ConfigCorruptionError represents pre-existing duplicate client entries
// inside a single inbound, which the panel UI must resolve manually
type ConfigCorruptionError struct {
	InboundID       int
	DuplicateEmails []string
}

// Error returns the error message
func (e *ConfigCorruptionError) Error() string {
	return fmt.Sprintf("inbound %d contains duplicate client emails: %s", e.InboundID, strings.Join(e.DuplicateEmails, ", "))
}

// NotFoundError represents a missing inbound or client
type NotFoundError struct {
	Kind string
	Key  string
}

// Error returns the error message
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// DeleteError represents a delete request the panel reported as failed
type DeleteError struct {
	Msg string
}

// Error returns the error message
func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete client: %s", e.Msg)
}
