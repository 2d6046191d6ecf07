package verification

import (
	"time"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

type State string

const (
	StateIdle               State = "idle"
	StateAcquiringLocation  State = "acquiring_location"
	StateEvaluatingGeofence State = "evaluating_geofence"
	StateCapturingBiometric State = "capturing_biometric"
	StateAssembling         State = "assembling"
	StateCompleted          State = "completed"
	StateRejected           State = "rejected"
)

// Observer получает каждый переход машины.
type Observer func(employeeID string, from, to State)

const (
	DefaultLocationTimeout      = 30 * time.Second
	DefaultBiometricTimeout     = 15 * time.Second
	DefaultMaxBiometricAttempts = 2
)

// Policy - политика площадки вместе с параметрами проверки.
type Policy struct {
	geofence.Policy `mapstructure:",squash"`

	LocationTimeout      time.Duration `mapstructure:"location_timeout"`
	BiometricTimeout     time.Duration `mapstructure:"biometric_timeout"`
	MaxBiometricAttempts int           `mapstructure:"max_biometric_attempts"`
}

func (p Policy) withDefaults() Policy {
	if p.LocationTimeout <= 0 {
		p.LocationTimeout = DefaultLocationTimeout
	}
	if p.BiometricTimeout <= 0 {
		p.BiometricTimeout = DefaultBiometricTimeout
	}
	if p.MaxBiometricAttempts <= 0 {
		p.MaxBiometricAttempts = DefaultMaxBiometricAttempts
	}
	return p
}

type Request struct {
	EmployeeID string
	Type       attendance.PunchType
	Method     attendance.Method
	Policy     Policy
	// FallbackPIN используется, если биометрия исчерпала попытки.
	FallbackPIN string
	// CorrectsID - идентификатор исправляемого события.
	CorrectsID string
}
