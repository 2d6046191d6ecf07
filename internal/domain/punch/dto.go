package punch

import (
	"time"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

// SubmitRequest - тело POST /api/v1/punches. Формат общий для клиента и сервера.
type SubmitRequest struct {
	ClientID           string             `json:"client_id" doc:"Client-generated event id"`
	EmployeeID         string             `json:"employee_id"`
	Type               string             `json:"type" enum:"clock_in,clock_out,break_start,break_end"`
	Timestamp          time.Time          `json:"timestamp"`
	Location           *geofence.Location `json:"location,omitempty" required:"false"`
	GeofenceResult     string             `json:"geofence_result" enum:"inside,outside,unavailable"`
	BiometricResult    string             `json:"biometric_result" enum:"verified,failed,skipped"`
	VerificationMethod string             `json:"verification_method" enum:"geo,geo_face,kiosk_pin,qr"`
	FallbackCredential bool               `json:"fallback_credential,omitempty" required:"false"`
	OverrideApplied    bool               `json:"override_applied,omitempty" required:"false"`
	ReviewRequired     bool               `json:"review_required,omitempty" required:"false"`
	SiteID             string             `json:"site_id,omitempty" required:"false"`
	DeviceID           string             `json:"device_id"`
	CorrectsID         string             `json:"corrects_id,omitempty" required:"false"`
}

func NewSubmitRequest(ev *attendance.Event) SubmitRequest {
	return SubmitRequest{
		ClientID:           ev.ID,
		EmployeeID:         ev.EmployeeID,
		Type:               string(ev.Type),
		Timestamp:          ev.Timestamp,
		Location:           ev.Location,
		GeofenceResult:     string(ev.GeofenceResult),
		BiometricResult:    string(ev.BiometricResult),
		VerificationMethod: string(ev.VerificationMethod),
		FallbackCredential: ev.FallbackCredential,
		OverrideApplied:    ev.OverrideApplied,
		ReviewRequired:     ev.ReviewRequired,
		SiteID:             ev.SiteID,
		DeviceID:           ev.DeviceID,
		CorrectsID:         ev.CorrectsID,
	}
}

const StatusAccepted = "accepted"

type SubmitResponse struct {
	Status       string `json:"status"`
	ServerID     string `json:"server_id"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

type ListResponse struct {
	Punches []Punch `json:"punches"`
}
