package client

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/queue"
)

var base = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// serviceRemote отправляет отметки прямо в серверный сервис. fail позволяет
// подменить ответ для конкретного вызова.
type serviceRemote struct {
	mu    sync.Mutex
	svc   *punch.Service
	repo  *punch.MemoryRepository
	calls []string
	fail  func(call int, req punch.SubmitRequest) error
}

func newServiceRemote() *serviceRemote {
	repo := punch.NewMemoryRepository()
	return &serviceRemote{repo: repo, svc: punch.NewService(repo, 2*time.Minute, slog.Default())}
}

func (r *serviceRemote) Submit(ctx context.Context, req punch.SubmitRequest) (*punch.SubmitResponse, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.ClientID)
	call := len(r.calls)
	fail := r.fail
	r.mu.Unlock()

	if fail != nil {
		if err := fail(call, req); err != nil {
			return nil, err
		}
	}

	resp, err := r.svc.Submit(ctx, req)
	switch {
	case errors.Is(err, punch.ErrInvalidPunch), errors.Is(err, punch.ErrPolicyViolation):
		return nil, &RemoteError{Status: http.StatusUnprocessableEntity, Message: err.Error()}
	case err != nil:
		return nil, &RemoteError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
	return resp, nil
}

func (r *serviceRemote) HealthCheck(context.Context) error { return nil }

func (r *serviceRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type syncFixture struct {
	storage *SQLiteStorage
	queue   *queue.Queue
	clock   *fakeClock
	remote  *serviceRemote
	monitor *ManualMonitor
	engine  *SyncEngine
}

func newSyncFixture(t *testing.T, maxAttempts int, opts ...SyncOption) *syncFixture {
	t.Helper()

	storage, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "punchclock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	clock := &fakeClock{now: base}
	q := queue.New(storage.Queue(), queue.Config{
		MaxAttempts:       maxAttempts,
		SubmissionTimeout: time.Minute,
		Backoff:           queue.Backoff{Base: time.Minute, Factor: 2, Cap: time.Hour},
	}, slog.Default(), queue.WithClock(clock.Now))

	remote := newServiceRemote()
	monitor := NewManualMonitor(Offline)
	engine := NewSyncEngine(q, storage, storage, remote, monitor,
		SyncConfig{BatchSize: 2, Interval: time.Hour},
		NewSyncMetrics(prometheus.NewRegistry()), slog.Default(), opts...)

	return &syncFixture{storage: storage, queue: q, clock: clock, remote: remote, monitor: monitor, engine: engine}
}

func (f *syncFixture) record(t *testing.T, ev *attendance.Event) {
	t.Helper()
	require.NoError(t, newEventRecorder(f.storage, f.storage, f.queue, nil).Record(context.Background(), ev))
}

func (f *syncFixture) event(t *testing.T, id string) *attendance.Event {
	t.Helper()
	ev, err := f.storage.Get(context.Background(), id)
	require.NoError(t, err)
	return ev
}

func testEvent(id string, typ attendance.PunchType, at time.Time) *attendance.Event {
	return &attendance.Event{
		ID:                 id,
		EmployeeID:         "emp-1",
		Type:               typ,
		Timestamp:          at,
		Location:           &geofence.Location{Lat: 55.7558, Lon: 37.6173, AccuracyMeters: 8},
		GeofenceResult:     geofence.Inside,
		BiometricResult:    attendance.BiometricVerified,
		VerificationMethod: attendance.MethodGeoFace,
		SiteID:             "hq",
		DeviceID:           "dev-1",
		CreatedAt:          at,
	}
}

func TestSyncEngine_OfflineThenOnline_FIFO(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	f.record(t, testEvent("e2", attendance.BreakStart, base.Add(3*time.Hour)))
	f.record(t, testEvent("e3", attendance.BreakEnd, base.Add(4*time.Hour)))

	_, err := f.engine.Drain(ctx)
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, f.remote.Calls())

	f.monitor.Set(Online)
	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Synced)
	assert.Equal(t, 3, res.Purged)
	assert.Equal(t, []string{"e1", "e2", "e3"}, f.remote.Calls())

	for _, id := range []string{"e1", "e2", "e3"} {
		ev := f.event(t, id)
		assert.Equal(t, attendance.SyncSynced, ev.SyncState, id)
		assert.NotEmpty(t, ev.ServerID, id)
	}

	cursor, err := f.queue.Cursor(ctx, queue.KindAttendanceEvent)
	require.NoError(t, err)
	assert.Equal(t, "e3", cursor.LastActionID)

	stats, err := f.queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Outstanding())
	assert.Equal(t, 3, f.engine.Stats().TotalSynced)
}

func TestSyncEngine_PermanentRejection(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.monitor.Set(Online)

	f.remote.fail = func(_ int, req punch.SubmitRequest) error {
		if req.ClientID == "e1" {
			return &RemoteError{Status: http.StatusUnprocessableEntity, Message: "unknown employee"}
		}
		return nil
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	f.record(t, testEvent("e2", attendance.ClockOut, base.Add(8*time.Hour)))

	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Synced)

	assert.Equal(t, attendance.SyncRejected, f.event(t, "e1").SyncState)
	assert.Equal(t, attendance.SyncSynced, f.event(t, "e2").SyncState)

	failed, err := f.queue.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "e1", failed[0].ID)
	assert.Contains(t, failed[0].LastError, "unknown employee")
}

func TestSyncEngine_TransientFailureKeepsOrder(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "server error", err: &RemoteError{Status: http.StatusServiceUnavailable}},
		{name: "rate limited", err: &RemoteError{Status: http.StatusTooManyRequests}},
		{name: "network", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t, 0)
			ctx := context.Background()
			f.monitor.Set(Online)
			f.remote.fail = func(call int, _ punch.SubmitRequest) error {
				if call == 1 {
					return tt.err
				}
				return nil
			}

			f.record(t, testEvent("e1", attendance.ClockIn, base))
			f.record(t, testEvent("e2", attendance.ClockOut, base.Add(8*time.Hour)))

			res, err := f.engine.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Requeued)
			assert.Zero(t, res.Synced)
			// e2 не обгоняет e1
			assert.Equal(t, []string{"e1"}, f.remote.Calls())

			a, err := f.storage.Queue().Get(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, queue.StatePending, a.State)
			assert.Equal(t, 1, a.Attempts)
			assert.True(t, a.NextAttemptAt.After(f.clock.Now()))
			assert.Equal(t, attendance.SyncPending, f.event(t, "e1").SyncState)

			f.clock.Advance(2 * time.Minute)
			res, err = f.engine.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Synced)
			assert.Equal(t, []string{"e1", "e1", "e2"}, f.remote.Calls())
		})
	}
}

func TestSyncEngine_LostResponseRetryIsDeduplicated(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()
	f.monitor.Set(Online)

	// сервер принял отметку, но ответ потерялся
	f.remote.fail = func(call int, req punch.SubmitRequest) error {
		if call == 1 {
			_, err := f.remote.svc.Submit(ctx, req)
			assert.NoError(t, err)
			return errors.New("read: connection reset by peer")
		}
		return nil
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))

	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requeued)

	f.clock.Advance(5 * time.Minute)
	res, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deduplicated)

	assert.Equal(t, 1, f.remote.repo.Count())
	ev := f.event(t, "e1")
	assert.Equal(t, attendance.SyncSynced, ev.SyncState)

	stored, err := f.remote.svc.List(ctx, "emp-1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].ServerID, ev.ServerID)
}

func TestSyncEngine_ConflictAdoptsExistingServerID(t *testing.T) {
	f := newSyncFixture(t, 0)
	f.monitor.Set(Online)
	f.remote.fail = func(int, punch.SubmitRequest) error {
		return &RemoteError{Status: http.StatusConflict, ServerID: "srv-existing"}
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))

	res, err := f.engine.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deduplicated)

	ev := f.event(t, "e1")
	assert.Equal(t, attendance.SyncSynced, ev.SyncState)
	assert.Equal(t, "srv-existing", ev.ServerID)
}

func TestSyncEngine_NonAuthoritativeNeverSubmitted(t *testing.T) {
	f := newSyncFixture(t, 0)
	f.monitor.Set(Online)

	ev := testEvent("e1", attendance.ClockIn, base)
	ev.GeofenceResult = geofence.Outside
	f.record(t, ev)

	res, err := f.engine.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, f.remote.Calls())
	assert.Equal(t, attendance.SyncRejected, f.event(t, "e1").SyncState)

	// подтвердить такое событие нельзя и напрямую
	err = f.storage.UpdateSync(context.Background(), "e1", attendance.SyncSynced, "srv")
	assert.ErrorIs(t, err, attendance.ErrNonAuthoritative)
}

func TestSyncEngine_DeadLetterAfterMaxAttempts(t *testing.T) {
	f := newSyncFixture(t, 2)
	ctx := context.Background()
	f.monitor.Set(Online)
	f.remote.fail = func(int, punch.SubmitRequest) error {
		return &RemoteError{Status: http.StatusBadGateway}
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	f.record(t, testEvent("e2", attendance.ClockOut, base.Add(8*time.Hour)))

	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requeued)

	f.clock.Advance(time.Hour)
	f.remote.fail = func(_ int, req punch.SubmitRequest) error {
		if req.ClientID == "e1" {
			return &RemoteError{Status: http.StatusBadGateway}
		}
		return nil
	}
	res, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered)

	// приход в dead letter держит уход до ручного разбора
	res, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Submitted)
	assert.Equal(t, attendance.SyncPending, f.event(t, "e2").SyncState)

	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "e1", dead[0].ID)
	assert.Equal(t, attendance.SyncPending, f.event(t, "e1").SyncState)

	// после разбора порядок сохраняется: сначала приход, потом уход
	require.NoError(t, f.queue.Resolve(ctx, "e1", queue.ResolveRetry))
	f.remote.fail = nil
	res, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, []string{"e1", "e1", "e1", "e2"}, f.remote.Calls())
}

func TestSyncEngine_RecoversStaleSubmission(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx := context.Background()

	f.record(t, testEvent("e1", attendance.ClockIn, base))

	// процесс упал посреди отправки
	_, err := f.queue.MarkSubmitting(ctx, "e1")
	require.NoError(t, err)

	f.monitor.Set(Online)
	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Recovered)
	assert.Empty(t, f.remote.Calls())

	f.clock.Advance(2 * time.Minute)
	res, err = f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recovered)
	assert.Equal(t, 1, res.Synced)
}

func TestSyncEngine_CorrectionsDrainAlongsideEvents(t *testing.T) {
	f := newSyncFixture(t, 0)
	f.monitor.Set(Online)
	f.remote.fail = func(_ int, req punch.SubmitRequest) error {
		if req.CorrectsID == "" {
			return &RemoteError{Status: http.StatusServiceUnavailable}
		}
		return nil
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	fix := testEvent("fix-1", attendance.ClockIn, base.Add(time.Minute))
	fix.CorrectsID = "e1"
	f.record(t, fix)

	res, err := f.engine.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requeued)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, attendance.SyncSynced, f.event(t, "fix-1").SyncState)
}

func TestSyncEngine_CancelledBeforeSubmission(t *testing.T) {
	f := newSyncFixture(t, 0)
	f.monitor.Set(Online)
	f.record(t, testEvent("e1", attendance.ClockIn, base))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Drain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.remote.Calls())

	a, err := f.storage.Queue().Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, queue.StatePending, a.State)
}

func TestSyncEngine_Run_DrainsWhenOnline(t *testing.T) {
	f := newSyncFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Run(ctx)
	}()

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	f.engine.Kick()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.remote.Calls())

	f.monitor.Set(Online)
	assert.Eventually(t, func() bool {
		ev, err := f.storage.Get(context.Background(), "e1")
		return err == nil && ev.SyncState == attendance.SyncSynced
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run не завершился после отмены")
	}
}

type registrationFlag struct {
	mu  sync.Mutex
	set bool
}

func (r *registrationFlag) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set
}

func (r *registrationFlag) Set(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = v
}

func TestSyncEngine_WaitsForRegistration(t *testing.T) {
	reg := &registrationFlag{}
	f := newSyncFixture(t, 0, WithRegistration(reg))
	ctx := context.Background()
	f.monitor.Set(Online)
	f.record(t, testEvent("e1", attendance.ClockIn, base))

	_, err := f.engine.Drain(ctx)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Empty(t, f.remote.Calls())

	a, err := f.storage.Queue().Get(ctx, "e1")
	require.NoError(t, err)
	assert.Zero(t, a.Attempts)

	reg.Set(true)
	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
}

func TestSyncEngine_RejectedTokenDoesNotSpendAttempts(t *testing.T) {
	f := newSyncFixture(t, 2)
	ctx := context.Background()
	f.monitor.Set(Online)
	f.remote.fail = func(int, punch.SubmitRequest) error {
		return &RemoteError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}

	f.record(t, testEvent("e1", attendance.ClockIn, base))
	f.record(t, testEvent("e2", attendance.ClockOut, base.Add(8*time.Hour)))

	// больше попыток, чем MaxAttempts: отметка не должна уйти в dead letter
	for i := 0; i < 5; i++ {
		_, err := f.engine.Drain(ctx)
		assert.ErrorIs(t, err, ErrUnauthorized)
		f.clock.Advance(time.Hour)
	}
	assert.Equal(t, []string{"e1", "e1", "e1", "e1", "e1"}, f.remote.Calls())

	a, err := f.storage.Queue().Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, queue.StatePending, a.State)
	assert.Zero(t, a.Attempts)
	assert.Contains(t, a.LastError, "Unauthorized")
	assert.Equal(t, attendance.SyncPending, f.event(t, "e1").SyncState)

	// после регистрации очередь уходит по порядку
	f.remote.fail = nil
	res, err := f.engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
}

func TestSyncEngine_DrainSpan(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	f := newSyncFixture(t, 0, WithTracerProvider(tp))
	f.monitor.Set(Online)
	f.record(t, testEvent("e1", attendance.ClockIn, base))

	_, err := f.engine.Drain(context.Background())
	require.NoError(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "sync.Drain", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int("sync.synced", 1))
}
