package attendance

import "fmt"

type PunchType string

const (
	ClockIn    PunchType = "clock_in"
	ClockOut   PunchType = "clock_out"
	BreakStart PunchType = "break_start"
	BreakEnd   PunchType = "break_end"
)

func (t PunchType) Valid() bool {
	switch t {
	case ClockIn, ClockOut, BreakStart, BreakEnd:
		return true
	}
	return false
}

func ParsePunchType(s string) (PunchType, error) {
	t := PunchType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPunchType, s)
	}
	return t, nil
}

type BiometricResult string

const (
	BiometricVerified BiometricResult = "verified"
	BiometricFailed   BiometricResult = "failed"
	BiometricSkipped  BiometricResult = "skipped"
)

func (b BiometricResult) Valid() bool {
	switch b {
	case BiometricVerified, BiometricFailed, BiometricSkipped:
		return true
	}
	return false
}

type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncSubmitting SyncState = "submitting"
	SyncSynced     SyncState = "synced"
	SyncRejected   SyncState = "rejected"
)

func (s SyncState) Valid() bool {
	switch s {
	case SyncPending, SyncSubmitting, SyncSynced, SyncRejected:
		return true
	}
	return false
}
