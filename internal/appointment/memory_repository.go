package appointment

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository with the same uniqueness
// rules as the Postgres schema. Records are stored and returned as copies.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Appointment
	order  []uuid.UUID
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) Insert(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ID]; ok {
		return ErrVersionConflict
	}
	if r.tokenTaken(a.DoctorID, a.Token) {
		return ErrTokenTaken
	}
	if r.slotTaken(a) {
		return ErrSlotConflict
	}

	a.Version = 1
	r.byID[a.ID] = *a
	r.order = append(r.order, a.ID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Appointment{}
	for _, id := range r.order {
		a := r.byID[id]
		if f.DoctorID != "" && a.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (r *MemoryRepository) Replace(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if cur.Version != a.Version {
		return ErrVersionConflict
	}
	if r.slotTaken(a) {
		return ErrSlotConflict
	}

	a.Version++
	r.byID[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(v uuid.UUID) bool { return v == id })
	return nil
}

func (r *MemoryRepository) TokenExists(_ context.Context, doctorID, token string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tokenTaken(doctorID, token), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded event log entries.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.events)
}

func (r *MemoryRepository) tokenTaken(doctorID, token string) bool {
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.Token == token {
			return true
		}
	}
	return false
}

// slotTaken reports whether another active record holds a's slot.
func (r *MemoryRepository) slotTaken(a *Appointment) bool {
	if a.Status == StatusCancelled {
		return false
	}
	for id, other := range r.byID {
		if id == a.ID || other.Status == StatusCancelled {
			continue
		}
		if other.slot() == a.slot() {
			return true
		}
	}
	return false
}
