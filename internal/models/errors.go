package models

import "errors"

var (
	// ErrNotFound: identity or participant absent; user-correctable.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous: several matches where one was expected.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrTransport: a collaborator call failed or timed out.
	ErrTransport = errors.New("transport failure")
	// ErrStateMismatch: the remote call succeeded but the state did not change.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrNotConfigured: a collaborator could not be constructed at startup.
	ErrNotConfigured = errors.New("not configured")
)
