// GET  /api/v1/health            # Проверка доступности (публичный)
// POST /api/v1/devices/register  # Регистрация устройства по ключу (публичный)
// POST /api/v1/punches           # Прием отметки (auth)
// GET  /api/v1/punches           # Отметки сотрудника (auth)
// GET  /metrics                  # Prometheus

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/api/http/device"
	healthAPI "punchclock/internal/app/server/api/http/health"
	"punchclock/internal/app/server/api/http/middleware"
	"punchclock/internal/app/server/api/http/middleware/auth"
	"punchclock/internal/app/server/api/http/middleware/logger"
	"punchclock/internal/app/server/api/http/middleware/metrics"
	punchAPI "punchclock/internal/app/server/api/http/punch"
	"punchclock/internal/app/server/config"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/session"
)

// Deps - хранилища и настройки, из которых собирается API.
type Deps struct {
	Config   *config.Config
	Punches  punch.Repository
	Sessions session.Repository
	// Storage - имя бэкенда для /api/v1/health.
	Storage  string
	Registry *prometheus.Registry
}

type Handlers struct {
	Health *healthAPI.Handler
	Device *device.Handler
	Punch  *punchAPI.Handler
}

// New создает *chi.Mux со всеми операциями, зарегистрированными через huma.Register
func New(deps Deps, log *slog.Logger) *chi.Mux {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	mux := chi.NewMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	cfg := huma.DefaultConfig("PunchClock API", "1.0.0")
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, cfg)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.Device.SetupRoutes(API)
	h.Punch.SetupRoutes(API)

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	m := metrics.New(deps.Registry)
	sessionService := session.NewService(deps.Sessions, deps.Config.Devices.TokenTTL, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware(), m.Middleware())
	healthHandler := healthAPI.NewHandler(healthAPI.Info{
		Storage:     deps.Storage,
		DedupWindow: deps.Config.Punch.DedupWindow,
	}, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware(), m.Middleware())
	deviceHandler := device.NewHandler(sessionService, deps.Config.Devices.EnrollmentKey, log, middlewares.GetAllAndClear())

	punchService := punch.NewService(deps.Punches, deps.Config.Punch.DedupWindow, log)
	middlewares.Add(loggerMW.Middleware(), m.Middleware(), authMW.Middleware())
	punchHandler := punchAPI.NewHandler(punchService, m, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Device: deviceHandler,
		Punch:  punchHandler,
	}
}
