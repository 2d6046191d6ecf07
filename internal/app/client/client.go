package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/client/config"
	"punchclock/internal/app/client/crypto"
	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/queue"
	"punchclock/internal/domain/verification"
	"punchclock/internal/infrastructure/telemetry"
)

const serviceName = "punchclock-client"

var ErrSyncDisabled = errors.New("фоновая синхронизация отключена (SYNC_ENABLED=false), используйте sync")

type App struct {
	config     *config.Config
	log        *slog.Logger
	storage    *SQLiteStorage
	queue      *queue.Queue
	httpClient *httpClient
	state      *stateFile
	monitor    *ProbeMonitor
	engine     *SyncEngine
	registry   *verification.Registry
	metrics    *prometheus.Registry
	telemetry  *telemetry.Telemetry
	wg         gosync.WaitGroup
	cancel     context.CancelFunc
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	state, err := loadStateFile(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	// Инициализируем HTTP клиент. Токен читается из файла состояния перед
	// каждым запросом: его может записать другой процесс клиента.
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}
	httpCl.SetTokenSource(state)

	tel, err := telemetry.New(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Endpoint:       cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации трассировки: %w", err)
	}

	// Локальное хранилище обязательно: без него отметки не переживут перезапуск
	storage, err := NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	q := queue.New(storage.Queue(), cfg.Queue, log)
	monitor := NewProbeMonitor(httpCl, cfg.Sync.ProbeInterval, cfg.Sync.ProbeTimeout, log)
	engine := NewSyncEngine(q, storage, storage, httpCl, monitor, SyncConfig{
		Interval:  cfg.Sync.Interval,
		BatchSize: cfg.Sync.BatchSize,
	}, NewSyncMetrics(reg), log,
		WithRegistration(state),
		WithTracerProvider(tel.TracerProvider()),
	)

	return &App{
		config:     cfg,
		log:        log,
		storage:    storage,
		queue:      q,
		httpClient: httpCl,
		state:      state,
		monitor:    monitor,
		engine:     engine,
		registry:   verification.NewRegistry(),
		metrics:    reg,
		telemetry:  tel,
	}, nil
}

// MetricsHandler отдает метрики клиента в формате Prometheus.
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	return mux
}

// Run запускает фоновый агент: проверку сети и отправку очереди.
// При MetricsAddress агент отдает /metrics.
func (a *App) Run() error {
	if !a.config.Sync.Enabled {
		return ErrSyncDisabled
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.handleSignals()

	if a.config.MetricsAddress != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serveMetrics(ctx)
		}()
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.engine.Run(ctx)
	}()

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"device_id", a.state.Get().DeviceID,
	)

	a.wg.Wait()
	return nil
}

func (a *App) serveMetrics(ctx context.Context) {
	srv := &http.Server{
		Addr:              a.config.MetricsAddress,
		Handler:           a.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("Ошибка остановки сервера метрик", "error", err)
		}
	}()

	a.log.Info("Метрики доступны", "addr", a.config.MetricsAddress, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("Сервер метрик остановлен", "error", err)
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	a.log.Info("Получен сигнал завершения", "signal", sig.String())

	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) Shutdown() {
	a.log.Debug("Завершение работы клиента...")

	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()
	if err := a.storage.Close(); err != nil {
		a.log.Warn("Ошибка закрытия хранилища", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.log.Warn("Ошибка отправки трассировки", "error", err)
	}
	a.log.Debug("Клиент завершил работу")
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return a.httpClient.HealthCheck(ctx)
}

// ==================== Device ====================

// DeviceID возвращает идентификатор устройства
func (a *App) DeviceID(ctx context.Context) (string, error) {
	return a.state.DeviceID(ctx)
}

// IsRegistered проверяет, получен ли токен устройства. Файл состояния
// перечитывается, поэтому регистрация из другого процесса видна сразу.
func (a *App) IsRegistered() bool {
	return a.state.Registered()
}

// RegisterDevice регистрирует устройство на сервере по ключу подключения
func (a *App) RegisterDevice(ctx context.Context, enrollmentKey string) (string, error) {
	deviceID, err := a.state.DeviceID(ctx)
	if err != nil {
		return "", err
	}

	token, err := a.httpClient.RegisterDevice(ctx, deviceID, enrollmentKey)
	if err != nil {
		return "", err
	}

	err = a.state.Update(func(s *AppState) {
		s.Token = token
		s.RegisteredAt = time.Now().UTC()
	})
	if err != nil {
		return "", err
	}

	a.log.Info("Устройство зарегистрировано", "device_id", deviceID)
	return deviceID, nil
}

// ==================== Employees ====================

// EnrollEmployee добавляет или обновляет сотрудника на устройстве
func (a *App) EnrollEmployee(ctx context.Context, id, name string, override bool) (*attendance.Employee, error) {
	if err := attendance.ValidateEmployeeID(id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	emp, err := a.storage.GetEmployee(ctx, id)
	switch {
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		emp = &attendance.Employee{ID: id, CreatedAt: now}
	case err != nil:
		return nil, err
	}

	emp.Name = name
	emp.OverrideGeofence = override
	emp.UpdatedAt = now

	if err := a.storage.SaveEmployee(ctx, emp); err != nil {
		return nil, err
	}
	return emp, nil
}

// SetPIN задает резервный PIN сотрудника
func (a *App) SetPIN(ctx context.Context, employeeID, pin string) error {
	emp, err := a.storage.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	hash, err := crypto.HashPIN(pin)
	if err != nil {
		return err
	}

	emp.PINHash = hash
	emp.UpdatedAt = time.Now().UTC()
	return a.storage.SaveEmployee(ctx, emp)
}

func (a *App) Employee(ctx context.Context, id string) (*attendance.Employee, error) {
	return a.storage.GetEmployee(ctx, id)
}

func (a *App) Employees(ctx context.Context) ([]*attendance.Employee, error) {
	return a.storage.ListEmployees(ctx)
}

// ==================== Punches ====================

// PunchRequest - отметка из CLI. Location и FaceScript заменяют
// аппаратные провайдеры координат и камеры.
type PunchRequest struct {
	EmployeeID  string
	Type        attendance.PunchType
	Method      attendance.Method
	FallbackPIN string
	CorrectsID  string
	Location    *geofence.Location
	FaceScript  string
}

// Punch проводит отметку через машину проверки и ставит событие в очередь.
// Ошибка проверки - *verification.Rejection.
func (a *App) Punch(ctx context.Context, req PunchRequest) (*attendance.Event, error) {
	if req.CorrectsID != "" {
		if _, err := a.storage.Get(ctx, req.CorrectsID); err != nil {
			return nil, fmt.Errorf("исправляемое событие: %w", err)
		}
	}

	face, err := ParseFaceScript(req.FaceScript)
	if err != nil {
		return nil, err
	}

	machine := verification.NewMachine(verification.Deps{
		Registry:    a.registry,
		Location:    FixedLocation{Location: req.Location},
		Biometric:   face,
		Clock:       verification.SystemClock,
		Device:      a.state,
		Employees:   a.storage,
		Credentials: crypto.PINVerifier{},
		Recorder:    newEventRecorder(a.storage, a.storage, a.queue, a.engine.Kick),
	}, a.log, verification.WithTracerProvider(a.telemetry.TracerProvider()))

	return machine.Punch(ctx, verification.Request{
		EmployeeID:  req.EmployeeID,
		Type:        req.Type,
		Method:      req.Method,
		Policy:      a.config.Site,
		FallbackPIN: req.FallbackPIN,
		CorrectsID:  req.CorrectsID,
	})
}

func (a *App) Event(ctx context.Context, id string) (*attendance.Event, error) {
	return a.storage.Get(ctx, id)
}

func (a *App) Events(ctx context.Context, filter attendance.EventFilter) ([]*attendance.Event, error) {
	return a.storage.List(ctx, filter)
}

// ServerPunches возвращает принятые сервером отметки сотрудника.
func (a *App) ServerPunches(ctx context.Context, employeeID string) ([]punch.Punch, error) {
	if !a.IsRegistered() {
		return nil, ErrNotRegistered
	}
	return a.httpClient.ListPunches(ctx, employeeID)
}

// ==================== Sync ====================

// SyncNow проверяет сеть и отправляет очередь один раз.
func (a *App) SyncNow(ctx context.Context) (*SyncResult, error) {
	if !a.IsRegistered() {
		return nil, ErrNotRegistered
	}
	if a.monitor.Probe(ctx) != Online {
		return nil, ErrOffline
	}

	res, err := a.engine.Drain(ctx)
	if err != nil {
		return res, err
	}

	if err := a.state.Update(func(s *AppState) { s.LastSync = res.EndTime.UTC() }); err != nil {
		a.log.Warn("Не удалось сохранить состояние", "error", err)
	}
	return res, nil
}

// SyncStatus - состояние очереди и время последней синхронизации
type SyncStatus struct {
	Queue    queue.Stats
	Cursors  []*queue.Cursor
	LastSync time.Time
	Engine   SyncStats
}

func (a *App) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	stats, err := a.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}

	status := &SyncStatus{Queue: stats, LastSync: a.state.Get().LastSync, Engine: a.engine.Stats()}
	for _, kind := range []queue.Kind{queue.KindAttendanceEvent, queue.KindAttendanceCorrection} {
		c, err := a.queue.Cursor(ctx, kind)
		if err != nil {
			return nil, err
		}
		status.Cursors = append(status.Cursors, c)
	}
	return status, nil
}

// Unsynced возвращает действия, требующие ручного разбора: failed и dead_letter.
func (a *App) Unsynced(ctx context.Context) ([]*queue.Action, error) {
	failed, err := a.queue.Failed(ctx)
	if err != nil {
		return nil, err
	}
	dead, err := a.queue.DeadLetters(ctx)
	if err != nil {
		return nil, err
	}
	return append(failed, dead...), nil
}

// Resolve вручную разрешает failed или dead_letter действие.
// При повторе отклоненное событие снова становится pending.
func (a *App) Resolve(ctx context.Context, id string, r queue.Resolution) error {
	return a.storage.RunInTx(ctx, func(ctx context.Context) error {
		if err := a.queue.Resolve(ctx, id, r); err != nil {
			return err
		}
		if r != queue.ResolveRetry {
			return nil
		}
		return a.storage.UpdateSync(ctx, id, attendance.SyncPending, "")
	})
}
