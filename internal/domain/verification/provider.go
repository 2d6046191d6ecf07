package verification

import (
	"context"
	"errors"
	"time"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

// ErrCapabilityUnavailable - провайдер недоступен или доступ запрещен.
// Повтор в рамках той же попытки не имеет смысла.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

type LocationProvider interface {
	CurrentLocation(ctx context.Context, timeout time.Duration) (geofence.Location, error)
}

// Template - результат захвата биометрии. Содержимое для машины непрозрачно.
type Template []byte

// BiometricCaptureProvider захватывает и сверяет лицо сотрудника.
// Ошибка означает неудачный захват либо несовпадение.
type BiometricCaptureProvider interface {
	Capture(ctx context.Context, timeout time.Duration) (Template, error)
}

type ClockSource interface {
	Now() time.Time
}

type DeviceIdentityProvider interface {
	DeviceID(ctx context.Context) (string, error)
}

type CredentialVerifier interface {
	VerifyPIN(hash, pin string) (bool, error)
}

type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id string) (*attendance.Employee, error)
}

// Recorder атомарно сохраняет событие и ставит его в очередь отправки.
type Recorder interface {
	Record(ctx context.Context, ev *attendance.Event) error
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock - часы устройства.
var SystemClock ClockSource = ClockFunc(time.Now)
