package queue

import "errors"

var (
	ErrNotFound      = errors.New("action not found")
	ErrDuplicate     = errors.New("action already enqueued")
	ErrInvalidAction = errors.New("invalid action")
	// ErrStateConflict - действие уже не в ожидаемом состоянии (CAS не прошел).
	ErrStateConflict = errors.New("action state conflict")
	ErrNotResolvable = errors.New("action is not awaiting manual resolution")
	ErrPersistence   = errors.New("queue persistence failure")
)
