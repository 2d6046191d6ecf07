package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/queue"
)

const syncTracerName = "punchclock/sync"

var (
	ErrOffline        = errors.New("нет соединения с сервером")
	ErrSyncInProgress = errors.New("синхронизация уже выполняется")
	ErrNotRegistered  = errors.New("устройство не зарегистрировано, выполните device register")
	ErrUnauthorized   = errors.New("сервер не принял токен устройства, выполните device register")
)

// Registration сообщает, получен ли токен устройства.
type Registration interface {
	Registered() bool
}

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	Interval      time.Duration
	BatchSize     int
	SubmitTimeout time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	return c
}

// SyncResult результат одного цикла синхронизации
type SyncResult struct {
	Recovered    int           `json:"recovered"`
	Submitted    int           `json:"submitted"`
	Synced       int           `json:"synced"`
	Deduplicated int           `json:"deduplicated"`
	Failed       int           `json:"failed"`
	Requeued     int           `json:"requeued"`
	DeadLettered int           `json:"dead_lettered"`
	Purged       int           `json:"purged"`
	Duration     time.Duration `json:"duration"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
}

func (r *SyncResult) add(o outcome) {
	r.Submitted++
	switch o {
	case outcomeSynced:
		r.Synced++
	case outcomeDeduplicated:
		r.Synced++
		r.Deduplicated++
	case outcomeFailed:
		r.Failed++
	case outcomeRequeued:
		r.Requeued++
	case outcomeDeadLetter:
		r.DeadLettered++
	case outcomeSkipped:
		r.Submitted--
	}
}

// SyncStats накопленная статистика синхронизации
type SyncStats struct {
	TotalSyncs        int       `json:"total_syncs"`
	LastSuccessful    time.Time `json:"last_successful"`
	LastFailed        time.Time `json:"last_failed"`
	TotalSynced       int       `json:"total_synced"`
	TotalDeduplicated int       `json:"total_deduplicated"`
	TotalFailed       int       `json:"total_failed"`
	TotalRequeued     int       `json:"total_requeued"`
	TotalDeadLettered int       `json:"total_dead_lettered"`
	LastError         string    `json:"last_error,omitempty"`
}

type outcome string

const (
	outcomeSynced       outcome = "synced"
	outcomeDeduplicated outcome = "deduplicated"
	outcomeFailed       outcome = "failed"
	outcomeRequeued     outcome = "requeued"
	outcomeDeadLetter   outcome = "dead_letter"
	outcomeSkipped      outcome = "skipped"
)

// SyncEngine отправляет очередь на сервер, когда есть сеть.
type SyncEngine struct {
	queue   queue.Servicer
	events  attendance.EventRepository
	tx      txRunner
	remote  Remote
	monitor ConnectivityMonitor
	cfg     SyncConfig
	metrics *SyncMetrics
	log     *slog.Logger
	tracer  trace.Tracer
	reg     Registration

	kick     chan struct{}
	draining sync.Mutex

	mu    sync.RWMutex
	stats SyncStats
}

type SyncOption func(*SyncEngine)

// WithRegistration приостанавливает отправку, пока у устройства нет токена.
func WithRegistration(r Registration) SyncOption {
	return func(e *SyncEngine) { e.reg = r }
}

// WithTracerProvider задает провайдер трассировки вместо глобального.
func WithTracerProvider(tp trace.TracerProvider) SyncOption {
	return func(e *SyncEngine) { e.tracer = tp.Tracer(syncTracerName) }
}

func NewSyncEngine(
	q queue.Servicer,
	events attendance.EventRepository,
	tx txRunner,
	remote Remote,
	monitor ConnectivityMonitor,
	cfg SyncConfig,
	metrics *SyncMetrics,
	log *slog.Logger,
	opts ...SyncOption,
) *SyncEngine {
	e := &SyncEngine{
		queue:   q,
		events:  events,
		tx:      tx,
		remote:  remote,
		monitor: monitor,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		log:     log.With("component", "sync_engine"),
		tracer:  otel.Tracer(syncTracerName),
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kick просит запустить цикл как можно скорее. Не блокирует.
func (e *SyncEngine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run запускает циклы по таймеру, по Kick и при появлении сети.
// Без сети отправка приостановлена.
func (e *SyncEngine) Run(ctx context.Context) {
	states := e.monitor.Subscribe(ctx)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	online := false
	for {
		select {
		case <-ctx.Done():
			e.log.Info("Синхронизация остановлена")
			return
		case c, ok := <-states:
			if !ok {
				return
			}
			wasOnline := online
			online = c == Online
			if online && !wasOnline {
				e.log.Info("Сеть доступна, отправляем очередь")
				e.runCycle(ctx)
			}
		case <-ticker.C:
			if online {
				e.runCycle(ctx)
			}
		case <-e.kick:
			if online {
				e.runCycle(ctx)
			}
		}
	}
}

func (e *SyncEngine) runCycle(ctx context.Context) {
	res, err := e.Drain(ctx)
	switch {
	case errors.Is(err, ErrOffline), errors.Is(err, ErrSyncInProgress), errors.Is(err, context.Canceled):
	case errors.Is(err, ErrNotRegistered):
		e.log.Debug("Устройство не зарегистрировано, отправка отложена")
	case errors.Is(err, ErrUnauthorized):
		e.log.Warn("Сервер отклонил токен устройства, отправка приостановлена")
	case err != nil:
		e.log.Error("Ошибка синхронизации", "error", err)
	case res.Submitted > 0:
		e.log.Info("Синхронизация завершена",
			"synced", res.Synced,
			"deduplicated", res.Deduplicated,
			"failed", res.Failed,
			"requeued", res.Requeued,
			"dead_lettered", res.DeadLettered,
			"duration", res.Duration,
		)
	}
}

// Drain отправляет все готовые действия. Виды отправляются параллельно,
// внутри вида строго по порядку. Отмена контекста проверяется между
// отправками: начатая отправка доводится до конца и ее результат сохраняется.
func (e *SyncEngine) Drain(ctx context.Context) (*SyncResult, error) {
	if e.monitor.Current() != Online {
		return nil, ErrOffline
	}
	if e.reg != nil && !e.reg.Registered() {
		return nil, ErrNotRegistered
	}
	if !e.draining.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.draining.Unlock()

	ctx, span := e.tracer.Start(ctx, "sync.Drain")
	defer span.End()

	res := &SyncResult{StartTime: time.Now()}
	err := e.drain(ctx, res)
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)

	span.SetAttributes(
		attribute.Int("sync.submitted", res.Submitted),
		attribute.Int("sync.synced", res.Synced),
		attribute.Int("sync.requeued", res.Requeued),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	e.metrics.ObserveDrain(res.Duration)
	e.recordStats(res, err)
	return res, err
}

func (e *SyncEngine) drain(ctx context.Context, res *SyncResult) error {
	recovered, err := e.queue.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("восстановление зависших отправок: %w", err)
	}
	res.Recovered = recovered

	for ctx.Err() == nil && e.monitor.Current() == Online {
		batch, err := e.queue.PeekBatch(ctx, e.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("чтение очереди: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		progress, err := e.submitBatch(ctx, batch, res)
		if err != nil {
			return err
		}
		if progress == 0 {
			break
		}
	}

	// очистка и счетчики не должны зависеть от отмены цикла
	persistCtx := context.WithoutCancel(ctx)
	purged, err := e.queue.Purge(persistCtx)
	if err != nil {
		return fmt.Errorf("очистка очереди: %w", err)
	}
	res.Purged = purged

	if stats, err := e.queue.Stats(persistCtx); err == nil {
		e.metrics.SetDepth(string(queue.StatePending), stats.Pending)
		e.metrics.SetDepth(string(queue.StateSubmitting), stats.Submitting)
		e.metrics.SetDepth(string(queue.StateFailed), stats.Failed)
		e.metrics.SetDepth(string(queue.StateDeadLetter), stats.DeadLetter)
	}

	return ctx.Err()
}

// submitBatch возвращает число действий, дошедших до синхронизированного
// или терминального состояния.
func (e *SyncEngine) submitBatch(ctx context.Context, batch []*queue.Action, res *SyncResult) (int, error) {
	var kinds []queue.Kind
	byKind := make(map[queue.Kind][]*queue.Action)
	for _, a := range batch {
		if _, ok := byKind[a.Kind]; !ok {
			kinds = append(kinds, a.Kind)
		}
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	var (
		mu       sync.Mutex
		progress int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		actions := byKind[kind]
		g.Go(func() error {
			for _, a := range actions {
				if gctx.Err() != nil || e.monitor.Current() != Online {
					return nil
				}

				o, err := e.submitOne(gctx, a)
				if err != nil {
					return err
				}

				mu.Lock()
				res.add(o)
				if o == outcomeSynced || o == outcomeDeduplicated || o == outcomeFailed {
					progress++
				}
				mu.Unlock()

				// после повтора вид ждет следующего цикла, иначе нарушится порядок
				if o == outcomeRequeued || o == outcomeDeadLetter || o == outcomeSkipped {
					return nil
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return progress, err
}

func (e *SyncEngine) submitOne(ctx context.Context, item *queue.Action) (outcome, error) {
	a, err := e.queue.MarkSubmitting(ctx, item.ID)
	if errors.Is(err, queue.ErrStateConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("захват действия %s: %w", item.ID, err)
	}

	// дальше действие уже в submitting: результат сохраняем даже при отмене
	ctx = context.WithoutCancel(ctx)
	kind := string(a.Kind)

	ev, err := a.Event()
	if err != nil {
		e.metrics.IncrementSubmission(kind, string(outcomeFailed))
		return outcomeFailed, e.queue.MarkFailed(ctx, a.ID, err.Error())
	}

	if !ev.Authoritative() {
		e.log.Warn("Отметка вне геозоны без разрешения не отправляется", "event_id", ev.ID, "employee_id", ev.EmployeeID)
		e.metrics.IncrementSubmission(kind, string(outcomeFailed))
		return outcomeFailed, e.reject(ctx, a, attendance.ErrNonAuthoritative.Error())
	}

	submitCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	start := time.Now()
	resp, err := e.remote.Submit(submitCtx, punch.NewSubmitRequest(ev))
	cancel()
	e.metrics.ObserveSubmit(time.Since(start))

	var remoteErr *RemoteError
	switch {
	case err == nil:
		o := outcomeSynced
		if resp.Deduplicated {
			o = outcomeDeduplicated
		}
		e.metrics.IncrementSubmission(kind, string(o))
		return o, e.confirm(ctx, a, resp.ServerID)

	case errors.As(err, &remoteErr) && remoteErr.Status == http.StatusConflict && remoteErr.ServerID != "":
		e.metrics.IncrementSubmission(kind, string(outcomeDeduplicated))
		return outcomeDeduplicated, e.confirm(ctx, a, remoteErr.ServerID)

	case errors.As(err, &remoteErr) && remoteErr.Status == http.StatusUnauthorized:
		// токен касается устройства, а не отметки: попытку не засчитываем
		if rlErr := e.queue.Release(ctx, a.ID, err.Error()); rlErr != nil {
			return "", fmt.Errorf("возврат действия %s: %w", a.ID, rlErr)
		}
		e.metrics.IncrementSubmission(kind, "unauthorized")
		return "", ErrUnauthorized

	case errors.As(err, &remoteErr) && remoteErr.Permanent():
		e.log.Warn("Сервер отклонил отметку", "event_id", ev.ID, "status", remoteErr.Status, "error", remoteErr.Message)
		e.metrics.IncrementSubmission(kind, string(outcomeFailed))
		return outcomeFailed, e.reject(ctx, a, err.Error())

	default:
		requeued, rqErr := e.queue.Requeue(ctx, a.ID, err.Error())
		if rqErr != nil {
			return "", fmt.Errorf("повтор действия %s: %w", a.ID, rqErr)
		}
		if requeued.State == queue.StateDeadLetter {
			e.metrics.IncrementSubmission(kind, string(outcomeDeadLetter))
			return outcomeDeadLetter, nil
		}
		e.log.Debug("Отправка отложена", "event_id", ev.ID, "attempts", requeued.Attempts, "next_attempt_at", requeued.NextAttemptAt, "error", err)
		e.metrics.IncrementSubmission(kind, string(outcomeRequeued))
		return outcomeRequeued, nil
	}
}

// confirm фиксирует подтверждение сервера в очереди и в журнале событий.
func (e *SyncEngine) confirm(ctx context.Context, a *queue.Action, serverID string) error {
	return e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.queue.MarkSynced(ctx, a.ID, serverID); err != nil {
			return err
		}
		return e.events.UpdateSync(ctx, a.ID, attendance.SyncSynced, serverID)
	})
}

func (e *SyncEngine) reject(ctx context.Context, a *queue.Action, cause string) error {
	return e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.queue.MarkFailed(ctx, a.ID, cause); err != nil {
			return err
		}
		return e.events.UpdateSync(ctx, a.ID, attendance.SyncRejected, "")
	})
}

func (e *SyncEngine) recordStats(res *SyncResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalSyncs++
	e.stats.TotalSynced += res.Synced
	e.stats.TotalDeduplicated += res.Deduplicated
	e.stats.TotalFailed += res.Failed
	e.stats.TotalRequeued += res.Requeued
	e.stats.TotalDeadLettered += res.DeadLettered

	if err != nil {
		e.stats.LastFailed = res.EndTime
		e.stats.LastError = err.Error()
		return
	}
	e.stats.LastSuccessful = res.EndTime
	e.stats.LastError = ""
}

// Stats возвращает накопленную статистику
func (e *SyncEngine) Stats() SyncStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
