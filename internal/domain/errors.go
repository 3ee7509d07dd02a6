package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrLockHeld       = errors.New("lock already held")
	ErrMalformedEntry = errors.New("malformed catalog entry")
	ErrCorruptIndex   = errors.New("corrupt market index")
	ErrEmptyCatalog   = errors.New("empty catalog")
)
