package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultBackoffBase   = time.Second
	DefaultBackoffFactor = 2.0
	DefaultBackoffCap    = 5 * time.Minute
	DefaultBackoffJitter = 0.2
)

// Backoff - экспоненциальная задержка с ограничением и джиттером.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
	Jitter float64
	// Rand возвращает число в [0, 1). Nil - math/rand/v2.
	Rand func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   DefaultBackoffBase,
		Factor: DefaultBackoffFactor,
		Cap:    DefaultBackoffCap,
		Jitter: DefaultBackoffJitter,
	}
}

// Raw возвращает min(base * factor^n, cap) без джиттера.
func (b Backoff) Raw(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(n))
	if b.Cap > 0 && (d > float64(b.Cap) || math.IsInf(d, 0)) {
		return b.Cap
	}
	return time.Duration(d)
}

// Delay - задержка перед попыткой n+1, в пределах Raw(n) * (1 ± Jitter).
func (b Backoff) Delay(n int) time.Duration {
	raw := float64(b.Raw(n))
	if b.Jitter <= 0 {
		return time.Duration(raw)
	}

	r := rand.Float64
	if b.Rand != nil {
		r = b.Rand
	}
	spread := b.Jitter * (2*r() - 1)
	return time.Duration(raw * (1 + spread))
}
