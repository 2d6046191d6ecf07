package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/verification"
)

var (
	errNoLocation   = errors.New("координаты не заданы")
	errFaceMismatch = errors.New("лицо не совпало с шаблоном")
)

// FixedLocation отдает координаты, переданные из командной строки.
type FixedLocation struct {
	Location *geofence.Location
}

func (f FixedLocation) CurrentLocation(ctx context.Context, _ time.Duration) (geofence.Location, error) {
	if err := ctx.Err(); err != nil {
		return geofence.Location{}, err
	}
	if f.Location == nil {
		return geofence.Location{}, errNoLocation
	}
	return *f.Location, nil
}

// FaceOutcome - результат одной попытки захвата в сценарии.
type FaceOutcome string

const (
	FaceMatch       FaceOutcome = "ok"
	FaceMismatch    FaceOutcome = "fail"
	FaceUnavailable FaceOutcome = "unavailable"
)

// ScriptedCapture проигрывает заданные результаты захвата по очереди. Когда
// сценарий кончился, повторяется последний результат. Заменяет камеру и
// модель сверки лица в CLI.
type ScriptedCapture struct {
	mu       sync.Mutex
	outcomes []FaceOutcome
	calls    int
}

// ParseFaceScript разбирает сценарий вида "fail,ok".
func ParseFaceScript(script string) (*ScriptedCapture, error) {
	if strings.TrimSpace(script) == "" {
		script = string(FaceMatch)
	}

	var outcomes []FaceOutcome
	for _, part := range strings.Split(script, ",") {
		o := FaceOutcome(strings.TrimSpace(part))
		switch o {
		case FaceMatch, FaceMismatch, FaceUnavailable:
			outcomes = append(outcomes, o)
		default:
			return nil, fmt.Errorf("неизвестный результат захвата %q (ожидается ok, fail или unavailable)", part)
		}
	}
	return &ScriptedCapture{outcomes: outcomes}, nil
}

func (s *ScriptedCapture) Capture(ctx context.Context, _ time.Duration) (verification.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	o := s.outcomes[i]
	s.mu.Unlock()

	switch o {
	case FaceMatch:
		return verification.Template("face"), nil
	case FaceUnavailable:
		return nil, fmt.Errorf("%w: камера недоступна", verification.ErrCapabilityUnavailable)
	default:
		return nil, errFaceMismatch
	}
}

// Calls возвращает число выполненных попыток захвата.
func (s *ScriptedCapture) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
