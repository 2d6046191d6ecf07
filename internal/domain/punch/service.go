package punch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

const DefaultDedupWindow = 2 * time.Minute

type Servicer interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	List(ctx context.Context, employeeID string, limit int) ([]Punch, error)
}

// Service принимает отметки и решает конфликты: отметка того же типа того же
// сотрудника в пределах окна считается уже существующей.
type Service struct {
	repo   Repository
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, window time.Duration, log *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Service{
		repo:   repo,
		window: window,
		log:    log.With("component", "punch_service"),
		now:    time.Now,
	}
}

func (s *Service) Window() time.Duration {
	return s.window
}

func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	p, err := s.toPunch(req)
	if err != nil {
		return nil, err
	}

	if p.GeofenceResult == geofence.Outside && !p.OverrideApplied {
		s.log.Warn("non-authoritative punch rejected", "client_id", p.ClientID, "employee_id", p.EmployeeID)
		return nil, ErrPolicyViolation
	}

	var existing *Punch
	if p.CorrectsID != "" {
		existing, err = s.repo.FindCorrection(ctx, p.CorrectsID, p.Type)
	} else {
		existing, err = s.repo.FindNear(ctx, p.EmployeeID, p.Type, p.Timestamp.Add(-s.window), p.Timestamp.Add(s.window))
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate: %w", err)
	}
	if existing != nil {
		s.logDuplicate(p, existing)
		return &SubmitResponse{Status: StatusAccepted, ServerID: existing.ServerID, Deduplicated: true}, nil
	}

	stored, inserted, err := s.repo.Insert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("insert punch: %w", err)
	}
	if !inserted {
		s.logDuplicate(p, stored)
		return &SubmitResponse{Status: StatusAccepted, ServerID: stored.ServerID, Deduplicated: true}, nil
	}

	s.log.Info("punch accepted",
		"server_id", stored.ServerID,
		"client_id", stored.ClientID,
		"employee_id", stored.EmployeeID,
		"type", stored.Type,
		"review_required", stored.ReviewRequired,
	)
	return &SubmitResponse{Status: StatusAccepted, ServerID: stored.ServerID}, nil
}

func (s *Service) logDuplicate(p, existing *Punch) {
	s.log.Info("duplicate punch resolved to existing record",
		"client_id", p.ClientID,
		"server_id", existing.ServerID,
		"employee_id", p.EmployeeID,
		"type", p.Type,
	)
}

func (s *Service) List(ctx context.Context, employeeID string, limit int) ([]Punch, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee_id is required", ErrInvalidPunch)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, employeeID, limit)
}

func (s *Service) toPunch(req SubmitRequest) (*Punch, error) {
	p := &Punch{
		ServerID:           uuid.NewString(),
		ClientID:           req.ClientID,
		EmployeeID:         req.EmployeeID,
		Type:               attendance.PunchType(req.Type),
		Timestamp:          req.Timestamp.UTC(),
		Location:           req.Location,
		GeofenceResult:     geofence.Result(req.GeofenceResult),
		BiometricResult:    attendance.BiometricResult(req.BiometricResult),
		VerificationMethod: attendance.MethodKind(req.VerificationMethod),
		FallbackCredential: req.FallbackCredential,
		OverrideApplied:    req.OverrideApplied,
		ReviewRequired:     req.ReviewRequired || req.OverrideApplied,
		SiteID:             req.SiteID,
		DeviceID:           req.DeviceID,
		CorrectsID:         req.CorrectsID,
		ReceivedAt:         s.now().UTC(),
	}

	switch {
	case p.ClientID == "":
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidPunch)
	case p.EmployeeID == "":
		return nil, fmt.Errorf("%w: employee_id is required", ErrInvalidPunch)
	case !p.Type.Valid():
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPunch, req.Type)
	case req.Timestamp.IsZero():
		return nil, fmt.Errorf("%w: timestamp is required", ErrInvalidPunch)
	case !p.GeofenceResult.Valid():
		return nil, fmt.Errorf("%w: unknown geofence_result %q", ErrInvalidPunch, req.GeofenceResult)
	case !p.BiometricResult.Valid():
		return nil, fmt.Errorf("%w: unknown biometric_result %q", ErrInvalidPunch, req.BiometricResult)
	case !p.VerificationMethod.Valid():
		return nil, fmt.Errorf("%w: unknown verification_method %q", ErrInvalidPunch, req.VerificationMethod)
	case p.DeviceID == "":
		return nil, fmt.Errorf("%w: device_id is required", ErrInvalidPunch)
	}

	if err := attendance.ValidateEmployeeID(p.EmployeeID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPunch, err)
	}

	if p.CorrectsID == "" {
		p.Bucket = BucketOf(p.Timestamp, s.window)
	}
	return p, nil
}
