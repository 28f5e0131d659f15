package models

import "errors"

// ErrNotFound is returned by stores when a lookup by identifier misses.
var ErrNotFound = errors.New("record not found")
