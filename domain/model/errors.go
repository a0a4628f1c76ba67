package model

import "errors"

// ErrInvalidRequest is returned when a request combines modes or options that cannot run together
var ErrInvalidRequest = errors.New("invalid request")
