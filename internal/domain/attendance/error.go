package attendance

import "errors"

var (
	ErrUnknownPunchType       = errors.New("unknown punch type")
	ErrUnknownBiometricResult = errors.New("unknown biometric result")
	ErrUnknownMethod          = errors.New("unknown verification method")
	ErrPINRequired            = errors.New("pin is required for kiosk method")
	ErrInvalidQRPayload       = errors.New("invalid qr payload")
	ErrEmptyEventID           = errors.New("event id is required")
	ErrEmptyEmployeeID        = errors.New("employee id is required")
	ErrInvalidEmployeeID      = errors.New("invalid employee id")
	ErrEmptyDeviceID          = errors.New("device id is required")
	ErrZeroTimestamp          = errors.New("timestamp is required")

	ErrEventNotFound    = errors.New("event not found")
	ErrDuplicateEvent   = errors.New("event already exists")
	ErrEmployeeNotFound = errors.New("employee not found")
	// ErrNonAuthoritative возвращается при попытке подтвердить отметку вне зоны без разрешения.
	ErrNonAuthoritative = errors.New("event is not authoritative")
)
