package entities

import "errors"

var (
	ErrNegativeReserve          = errors.New("token reserve cannot be negative")
	ErrNegativeAvailableFunding = errors.New("available funding cannot be negative")
)
