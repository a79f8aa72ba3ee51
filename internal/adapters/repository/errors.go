package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStatusConflict         = errors.New("proposal status changed concurrently")
	ErrAlreadyExists          = errors.New("already exists")
)
