package geofence

import "errors"

var (
	ErrUnknownResult        = errors.New("unknown geofence result")
	ErrEmptySiteID          = errors.New("site id is required")
	ErrInvalidCenter        = errors.New("invalid geofence center")
	ErrInvalidRadius        = errors.New("radius must be positive")
	ErrInvalidTolerance     = errors.New("tolerance factor must not be negative")
	ErrInvalidAccuracyLimit = errors.New("max acceptable accuracy must be positive")
)
