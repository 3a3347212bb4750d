package lobby

import "errors"

var (
	ErrKeyNotFound       = errors.New("key_not_found")
	ErrInvalidIdentifier = errors.New("invalid_identifier")
	ErrSessionNotFound   = errors.New("session_not_found")
)
