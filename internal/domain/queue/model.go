package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"punchclock/internal/domain/attendance"
)

type Kind string

const (
	KindAttendanceEvent      Kind = "attendance_event"
	KindAttendanceCorrection Kind = "attendance_correction"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAttendanceEvent, KindAttendanceCorrection:
		return true
	}
	return false
}

type State string

const (
	StatePending    State = "pending"
	StateSubmitting State = "submitting"
	StateSynced     State = "synced"
	StateFailed     State = "failed"
	StateDeadLetter State = "dead_letter"
)

func (s State) Terminal() bool {
	return s == StateSynced || s == StateFailed || s == StateDeadLetter
}

// Action - единица работы для отправки на сервер. ID не меняется между попытками.
type Action struct {
	ID              string          `json:"id"`
	Kind            Kind            `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
	Seq             int64           `json:"seq"`
	Attempts        int             `json:"attempts"`
	LastError       string          `json:"last_error,omitempty"`
	State           State           `json:"state"`
	NextAttemptAt   time.Time       `json:"next_attempt_at"`
	SubmittingSince time.Time       `json:"submitting_since,omitempty"`
	ServerID        string          `json:"server_id,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (a *Action) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidAction)
	case !a.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	case len(a.Payload) == 0:
		return fmt.Errorf("%w: empty payload", ErrInvalidAction)
	}
	return nil
}

// Eligible - можно ли отправлять действие в момент now.
func (a *Action) Eligible(now time.Time) bool {
	return a.State == StatePending && !a.NextAttemptAt.After(now)
}

// NewEventAction оборачивает событие отметки в действие очереди.
func NewEventAction(ev *attendance.Event) (*Action, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	kind := KindAttendanceEvent
	if ev.IsCorrection() {
		kind = KindAttendanceCorrection
	}

	return &Action{
		ID:        ev.ID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: ev.CreatedAt,
	}, nil
}

// Event декодирует событие из полезной нагрузки.
func (a *Action) Event() (*attendance.Event, error) {
	var ev attendance.Event
	if err := json.Unmarshal(a.Payload, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", a.ID, err)
	}
	return &ev, nil
}

// Cursor - последняя подтвержденная сервером позиция по виду действий.
type Cursor struct {
	Kind          Kind      `json:"kind"`
	LastActionID  string    `json:"last_action_id"`
	LastServerID  string    `json:"last_server_id"`
	LastCreatedAt time.Time `json:"last_created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Resolution string

const (
	ResolveRetry   Resolution = "retry"
	ResolveDiscard Resolution = "discard"
)

type Stats struct {
	Pending    int `json:"pending"`
	Submitting int `json:"submitting"`
	Synced     int `json:"synced"`
	Failed     int `json:"failed"`
	DeadLetter int `json:"dead_letter"`
}

func (s Stats) Outstanding() int {
	return s.Pending + s.Submitting
}
