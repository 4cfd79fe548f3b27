package entity

import "errors"

var (
	// ErrNotFound means the job or blob does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a job id was reused on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict is a revision mismatch on a conditional write. It is
	// absorbed by the store's retry loop and never surfaces to callers.
	ErrConflict = errors.New("revision conflict")
	// ErrInvalidInput marks contract violations that must not be retried.
	ErrInvalidInput = errors.New("invalid input")
)
