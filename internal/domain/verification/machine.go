package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

const tracerName = "punchclock/verification"

// Deps - провайдеры и хранилища, которые использует машина.
type Deps struct {
	Registry    *Registry
	Location    LocationProvider
	Biometric   BiometricCaptureProvider
	Clock       ClockSource
	Device      DeviceIdentityProvider
	Employees   EmployeeDirectory
	Credentials CredentialVerifier
	Recorder    Recorder
	Evaluator   geofence.Evaluator
}

type Servicer interface {
	Punch(ctx context.Context, req Request) (*attendance.Event, error)
}

// Machine проводит отметку через этапы проверки. Каждый вызов Punch -
// новый независимый прогон, состояние между вызовами не хранится.
type Machine struct {
	deps     Deps
	log      *slog.Logger
	observer Observer
	tracer   trace.Tracer
	newID    func() string
}

type Option func(*Machine)

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

func WithIDGenerator(f func() string) Option {
	return func(m *Machine) { m.newID = f }
}

// WithTracerProvider задает провайдер трассировки вместо глобального.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Machine) { m.tracer = tp.Tracer(tracerName) }
}

func NewMachine(deps Deps, log *slog.Logger, opts ...Option) *Machine {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Evaluator == nil {
		deps.Evaluator = geofence.HaversineEvaluator{}
	}

	m := &Machine{
		deps:   deps,
		log:    log.With("component", "verification"),
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Punch выполняет отметку. Ошибка всегда *Rejection.
func (m *Machine) Punch(ctx context.Context, req Request) (ev *attendance.Event, err error) {
	ctx, span := m.tracer.Start(ctx, "verification.Punch", trace.WithAttributes(
		attribute.String("employee.id", req.EmployeeID),
		attribute.String("punch.type", string(req.Type)),
	))
	defer func() {
		if err != nil {
			reason, _ := ReasonOf(err)
			span.SetAttributes(attribute.String("punch.rejection", string(reason)))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(reason))
		} else {
			span.SetAttributes(attribute.String("punch.event_id", ev.ID))
		}
		span.End()
	}()

	r := &run{m: m, req: req, policy: req.Policy.withDefaults(), state: StateIdle}

	if req.EmployeeID == "" {
		return nil, r.reject(ReasonInvalidRequest, attendance.ErrEmptyEmployeeID)
	}

	release, ok := m.deps.Registry.TryAcquire(req.EmployeeID)
	if !ok {
		return nil, r.reject(ReasonVerificationInProgress, nil)
	}
	defer release()

	ev, err = r.execute(ctx)
	if err != nil {
		reason, ok := ReasonOf(err)
		if !ok {
			reason = ReasonInvalidRequest
			err = r.reject(reason, err)
		}
		m.log.Info("punch rejected", "employee_id", req.EmployeeID, "reason", reason, "error", err)
		return nil, err
	}

	m.log.Info("punch completed",
		"employee_id", ev.EmployeeID,
		"event_id", ev.ID,
		"type", ev.Type,
		"geofence", ev.GeofenceResult,
		"biometric", ev.BiometricResult,
		"review_required", ev.ReviewRequired,
	)
	return ev, nil
}

// run - один прогон машины.
type run struct {
	m      *Machine
	req    Request
	policy Policy
	state  State

	employee  *attendance.Employee
	location  *geofence.Location
	geoResult geofence.Result
	override  bool
	biometric attendance.BiometricResult
	fallback  bool
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	if r.m.observer != nil {
		r.m.observer(r.req.EmployeeID, from, to)
	}
	r.m.log.Debug("verification state", "employee_id", r.req.EmployeeID, "from", from, "to", to)
}

func (r *run) reject(reason Reason, cause error) *Rejection {
	r.transition(StateRejected)
	return reject(reason, cause)
}

// checkpoint - точка кооперативной отмены между этапами.
func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return r.reject(ReasonCancelled, err)
	}
	return nil
}

func (r *run) execute(ctx context.Context) (*attendance.Event, error) {
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	needBiometric, err := r.acquireLocation(ctx)
	if err != nil {
		return nil, err
	}

	r.biometric = attendance.BiometricSkipped
	if needBiometric {
		if err := r.checkpoint(ctx); err != nil {
			return nil, err
		}
		if err := r.captureBiometric(ctx); err != nil {
			return nil, err
		}
	}

	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	return r.assemble(ctx)
}

func (r *run) validate(ctx context.Context) error {
	req := r.req
	if !req.Type.Valid() {
		return r.reject(ReasonInvalidRequest, fmt.Errorf("%w: %q", attendance.ErrUnknownPunchType, req.Type))
	}
	if req.Method == nil {
		return r.reject(ReasonInvalidRequest, attendance.ErrUnknownMethod)
	}
	if !r.policy.AllowsMethod(string(req.Method.Kind())) {
		return r.reject(ReasonMethodNotAllowed, fmt.Errorf("method %s not allowed at site %s", req.Method.Kind(), r.policy.SiteID))
	}

	employee, err := r.m.deps.Employees.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return r.reject(ReasonInvalidRequest, fmt.Errorf("get employee: %w", err))
	}
	r.employee = employee

	switch method := req.Method.(type) {
	case attendance.GeoMethod:
	case attendance.KioskMethod:
		if !r.verifyPIN(method.PIN) {
			return r.reject(ReasonCredentialInvalid, nil)
		}
	case attendance.QRMethod:
		site, err := method.SiteID()
		if err != nil {
			return r.reject(ReasonInvalidRequest, err)
		}
		if site != r.policy.SiteID {
			return r.reject(ReasonSiteMismatch, fmt.Errorf("qr site %s, policy site %s", site, r.policy.SiteID))
		}
	default:
		return r.reject(ReasonInvalidRequest, fmt.Errorf("%w: %T", attendance.ErrUnknownMethod, method))
	}

	return nil
}

// acquireLocation проходит этапы координат и геозоны. Возвращает,
// нужен ли после них захват биометрии.
func (r *run) acquireLocation(ctx context.Context) (bool, error) {
	method := r.req.Method
	r.transition(StateAcquiringLocation)

	locCtx, cancel := context.WithTimeout(ctx, r.policy.LocationTimeout)
	loc, err := r.m.deps.Location.CurrentLocation(locCtx, r.policy.LocationTimeout)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false, r.reject(ReasonCancelled, ctx.Err())
		}
		if method.AllowsLocationFallback() {
			r.m.log.Warn("location unavailable, using fallback", "employee_id", r.req.EmployeeID, "method", method.Kind(), "error", err)
			r.geoResult = geofence.Unavailable
			r.transition(StateAssembling)
			return false, nil
		}
		return false, r.reject(ReasonLocationUnavailable, err)
	}

	if err := r.checkpoint(ctx); err != nil {
		return false, err
	}
	r.transition(StateEvaluatingGeofence)
	r.location = &loc
	r.geoResult = r.m.deps.Evaluator.Evaluate(loc, r.policy.Policy)

	switch r.geoResult {
	case geofence.Inside:
	case geofence.Outside:
		if !r.employee.OverrideGeofence {
			return false, r.reject(ReasonOutsideGeofence, nil)
		}
		r.override = true
	case geofence.Unavailable:
		if !method.AllowsLocationFallback() {
			return false, r.reject(ReasonLocationUnavailable,
				fmt.Errorf("accuracy %.0fm exceeds %.0fm", loc.AccuracyMeters, r.policy.MaxAcceptableAccuracyMeters))
		}
	}

	if method.RequiresBiometric() {
		r.transition(StateCapturingBiometric)
		return true, nil
	}
	r.transition(StateAssembling)
	return false, nil
}

func (r *run) captureBiometric(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxBiometricAttempts; attempt++ {
		if attempt > 1 {
			if err := r.checkpoint(ctx); err != nil {
				return err
			}
		}

		capCtx, cancel := context.WithTimeout(ctx, r.policy.BiometricTimeout)
		_, err := r.m.deps.Biometric.Capture(capCtx, r.policy.BiometricTimeout)
		cancel()
		if err == nil {
			r.biometric = attendance.BiometricVerified
			r.transition(StateAssembling)
			return nil
		}
		if errors.Is(err, ErrCapabilityUnavailable) {
			return r.reject(ReasonCapabilityUnavailable, err)
		}
		if ctx.Err() != nil {
			return r.reject(ReasonCancelled, ctx.Err())
		}

		lastErr = err
		r.m.log.Debug("biometric capture failed", "employee_id", r.req.EmployeeID, "attempt", attempt, "error", err)
	}

	if r.req.FallbackPIN != "" && r.verifyPIN(r.req.FallbackPIN) {
		r.biometric = attendance.BiometricSkipped
		r.fallback = true
		r.transition(StateAssembling)
		return nil
	}

	return r.reject(ReasonBiometricFailed, lastErr)
}

func (r *run) verifyPIN(pin string) bool {
	if pin == "" || !r.employee.HasPIN() || r.m.deps.Credentials == nil {
		return false
	}
	ok, err := r.m.deps.Credentials.VerifyPIN(r.employee.PINHash, pin)
	if err != nil {
		r.m.log.Error("verify pin", "employee_id", r.req.EmployeeID, "error", err)
		return false
	}
	return ok
}

func (r *run) assemble(ctx context.Context) (*attendance.Event, error) {
	deviceID, err := r.m.deps.Device.DeviceID(ctx)
	if err != nil {
		return nil, r.reject(ReasonCapabilityUnavailable, fmt.Errorf("device id: %w", err))
	}

	now := r.m.deps.Clock.Now().UTC()
	ev := &attendance.Event{
		ID:                 r.m.newID(),
		EmployeeID:         r.req.EmployeeID,
		Type:               r.req.Type,
		Timestamp:          now,
		Location:           r.location,
		GeofenceResult:     r.geoResult,
		BiometricResult:    r.biometric,
		VerificationMethod: r.req.Method.Kind(),
		FallbackCredential: r.fallback,
		OverrideApplied:    r.override,
		ReviewRequired:     r.override,
		SiteID:             r.policy.SiteID,
		DeviceID:           deviceID,
		CorrectsID:         r.req.CorrectsID,
		SyncState:          attendance.SyncPending,
		CreatedAt:          now,
	}

	if err := r.m.deps.Recorder.Record(ctx, ev); err != nil {
		return nil, r.reject(ReasonQueuePersistenceFailure, err)
	}

	r.transition(StateCompleted)
	return ev, nil
}
