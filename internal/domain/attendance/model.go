package attendance

import (
	"time"

	"punchclock/internal/domain/geofence"
)

// Event - неизменяемая запись об отметке. После создания меняются
// только SyncState и ServerID, исправления оформляются новым событием
// с заполненным CorrectsID.
type Event struct {
	ID                 string             `json:"id"`
	EmployeeID         string             `json:"employee_id"`
	Type               PunchType          `json:"type"`
	Timestamp          time.Time          `json:"timestamp"`
	Location           *geofence.Location `json:"location,omitempty"`
	GeofenceResult     geofence.Result    `json:"geofence_result"`
	BiometricResult    BiometricResult    `json:"biometric_result"`
	VerificationMethod MethodKind         `json:"verification_method"`
	FallbackCredential bool               `json:"fallback_credential"`
	OverrideApplied    bool               `json:"override_applied"`
	ReviewRequired     bool               `json:"review_required"`
	SiteID             string             `json:"site_id"`
	DeviceID           string             `json:"device_id"`
	CorrectsID         string             `json:"corrects_id,omitempty"`
	SyncState          SyncState          `json:"sync_state"`
	ServerID           string             `json:"server_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Authoritative - может ли событие стать подтвержденной отметкой.
// Отметка вне зоны без разрешения хранится только для аудита.
func (e *Event) Authoritative() bool {
	return !(e.GeofenceResult == geofence.Outside && !e.OverrideApplied)
}

func (e *Event) IsCorrection() bool {
	return e.CorrectsID != ""
}

func (e *Event) Validate() error {
	switch {
	case e.ID == "":
		return ErrEmptyEventID
	case e.EmployeeID == "":
		return ErrEmptyEmployeeID
	case !e.Type.Valid():
		return ErrUnknownPunchType
	case e.Timestamp.IsZero():
		return ErrZeroTimestamp
	case !e.GeofenceResult.Valid():
		return geofence.ErrUnknownResult
	case !e.BiometricResult.Valid():
		return ErrUnknownBiometricResult
	case !e.VerificationMethod.Valid():
		return ErrUnknownMethod
	case e.DeviceID == "":
		return ErrEmptyDeviceID
	}
	return nil
}

// Employee - локальная карточка сотрудника на устройстве.
type Employee struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	OverrideGeofence bool      `json:"override_geofence"`
	PINHash          string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (e *Employee) HasPIN() bool {
	return e.PINHash != ""
}

type EventFilter struct {
	EmployeeID string
	SyncState  SyncState
	Limit      int
}
