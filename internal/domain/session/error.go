package session

import "errors"

var (
	ErrInvalidToken  = errors.New("invalid device token")
	ErrEmptyDeviceID = errors.New("device id is required")
)
