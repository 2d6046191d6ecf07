package verification

import "sync"

// Registry - активные проверки по сотрудникам. Одна проверка на сотрудника.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// TryAcquire занимает слот сотрудника. Возвращает release и false,
// если слот уже занят.
func (r *Registry) TryAcquire(employeeID string) (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[employeeID]; busy {
		return nil, false
	}
	r.active[employeeID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, employeeID)
			r.mu.Unlock()
		})
	}, true
}

func (r *Registry) Active(employeeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[employeeID]
	return ok
}
