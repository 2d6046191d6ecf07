package punch

import "errors"

var (
	ErrInvalidPunch    = errors.New("invalid punch")
	ErrPolicyViolation = errors.New("outside geofence without override")
	ErrNotFound        = errors.New("punch not found")
)
