package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

type Connectivity int

const (
	Offline Connectivity = iota
	Online
)

func (c Connectivity) String() string {
	if c == Online {
		return "online"
	}
	return "offline"
}

// ConnectivityMonitor сообщает о смене состояния сети. Новый подписчик
// сразу получает текущее состояние.
type ConnectivityMonitor interface {
	Subscribe(ctx context.Context) <-chan Connectivity
	Current() Connectivity
}

type broadcaster struct {
	mu      sync.Mutex
	current Connectivity
	subs    map[chan Connectivity]struct{}
}

func newBroadcaster(initial Connectivity) *broadcaster {
	return &broadcaster{current: initial, subs: make(map[chan Connectivity]struct{})}
}

func (b *broadcaster) Current() Connectivity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *broadcaster) Subscribe(ctx context.Context) <-chan Connectivity {
	ch := make(chan Connectivity, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	ch <- b.current
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// set возвращает true, если состояние изменилось.
func (b *broadcaster) set(c Connectivity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == c {
		return false
	}
	b.current = c
	for ch := range b.subs {
		// медленному подписчику важно только последнее состояние
		select {
		case <-ch:
		default:
		}
		ch <- c
	}
	return true
}

// ManualMonitor переключается вызовом Set. Используется в тестах и в
// однократных командах CLI.
type ManualMonitor struct {
	*broadcaster
}

func NewManualMonitor(initial Connectivity) *ManualMonitor {
	return &ManualMonitor{broadcaster: newBroadcaster(initial)}
}

func (m *ManualMonitor) Set(c Connectivity) {
	m.set(c)
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProbeMonitor периодически опрашивает /api/v1/health сервера.
type ProbeMonitor struct {
	*broadcaster
	remote   healthChecker
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewProbeMonitor(remote healthChecker, interval, timeout time.Duration, log *slog.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProbeMonitor{
		broadcaster: newBroadcaster(Offline),
		remote:      remote,
		interval:    interval,
		timeout:     timeout,
		log:         log.With("component", "connectivity"),
	}
}

// Run опрашивает сервер до отмены контекста.
func (p *ProbeMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe выполняет одну проверку и обновляет состояние.
func (p *ProbeMonitor) Probe(ctx context.Context) Connectivity {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	state := Online
	if err := p.remote.HealthCheck(probeCtx); err != nil {
		state = Offline
		p.log.Debug("Сервер недоступен", "error", err)
	}

	if p.set(state) {
		p.log.Info("Состояние сети изменилось", "state", state.String())
	}
	return state
}
