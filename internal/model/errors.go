package model

import "errors"

// ErrInvalid marks input that failed validation. No state was changed.
var ErrInvalid = errors.New("invalid input")
