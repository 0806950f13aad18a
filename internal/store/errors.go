package store

import "errors"

// ErrNotFound is returned when the requested session does not exist.
var ErrNotFound = errors.New("session not found")
