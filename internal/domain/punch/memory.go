package punch

import (
	"context"
	"sort"
	"sync"
	"time"

	"punchclock/internal/domain/attendance"
)

type bucketKey struct {
	employeeID string
	typ        attendance.PunchType
	bucket     int64
}

type correctionKey struct {
	correctsID string
	typ        attendance.PunchType
}

// MemoryRepository хранит отметки в памяти процесса. Используется сервером
// без DATABASE_URI и в тестах.
type MemoryRepository struct {
	mu           sync.Mutex
	punches      []Punch
	byBucket     map[bucketKey]int
	byCorrection map[correctionKey]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byBucket:     make(map[bucketKey]int),
		byCorrection: make(map[correctionKey]int),
	}
}

func (r *MemoryRepository) FindNear(_ context.Context, employeeID string, t attendance.PunchType, from, to time.Time) (*Punch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.punches {
		p := r.punches[i]
		if p.CorrectsID != "" || p.EmployeeID != employeeID || p.Type != t {
			continue
		}
		if p.Timestamp.After(from) && p.Timestamp.Before(to) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindCorrection(_ context.Context, correctsID string, t attendance.PunchType) (*Punch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.punches {
		if r.punches[i].CorrectsID == correctsID && r.punches[i].Type == t {
			p := r.punches[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Insert(_ context.Context, p *Punch) (*Punch, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// те же ключи, что и уникальные индексы в Postgres; client_id ключом не является
	if p.CorrectsID == "" {
		key := bucketKey{employeeID: p.EmployeeID, typ: p.Type, bucket: p.Bucket}
		if i, ok := r.byBucket[key]; ok {
			existing := r.punches[i]
			return &existing, false, nil
		}
		r.byBucket[key] = len(r.punches)
	} else {
		key := correctionKey{correctsID: p.CorrectsID, typ: p.Type}
		if i, ok := r.byCorrection[key]; ok {
			existing := r.punches[i]
			return &existing, false, nil
		}
		r.byCorrection[key] = len(r.punches)
	}

	r.punches = append(r.punches, *p)
	stored := *p
	return &stored, true, nil
}

func (r *MemoryRepository) List(_ context.Context, employeeID string, limit int) ([]Punch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Punch
	for _, p := range r.punches {
		if p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.punches)
}
