package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
	ErrInvalidOdd    = errors.New("invalid odd value")
	ErrNoOdds        = errors.New("selection has no odds")
	ErrInvalidEmail  = errors.New("invalid email address")
)
