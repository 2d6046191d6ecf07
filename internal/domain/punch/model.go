package punch

import (
	"time"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

// Punch - авторитетная отметка на сервере.
type Punch struct {
	ServerID           string                     `json:"server_id"`
	ClientID           string                     `json:"client_id"`
	EmployeeID         string                     `json:"employee_id"`
	Type               attendance.PunchType       `json:"type"`
	Timestamp          time.Time                  `json:"timestamp"`
	Bucket             int64                      `json:"bucket"`
	Location           *geofence.Location         `json:"location,omitempty"`
	GeofenceResult     geofence.Result            `json:"geofence_result"`
	BiometricResult    attendance.BiometricResult `json:"biometric_result"`
	VerificationMethod attendance.MethodKind      `json:"verification_method"`
	FallbackCredential bool                       `json:"fallback_credential"`
	OverrideApplied    bool                       `json:"override_applied"`
	ReviewRequired     bool                       `json:"review_required"`
	SiteID             string                     `json:"site_id"`
	DeviceID           string                     `json:"device_id"`
	CorrectsID         string                     `json:"corrects_id,omitempty"`
	ReceivedAt         time.Time                  `json:"received_at"`
}

// BucketOf - номер временной корзины шириной window.
func BucketOf(ts time.Time, window time.Duration) int64 {
	n := ts.UnixNano()
	w := window.Nanoseconds()
	b := n / w
	if n%w != 0 && n < 0 {
		b--
	}
	return b
}
