package calendar

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps slot days in process memory. A single mutex makes
// Reserve and Release compare-and-set operations.
type MemoryStore struct {
	mu   sync.Mutex
	days map[Key][]Slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[Key][]Slot)}
}

func (m *MemoryStore) Dates(_ context.Context, doctorID string, channel Channel) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dates := []string{}
	for k := range m.days {
		if k.DoctorID == doctorID && k.Channel == channel {
			dates = append(dates, k.Date)
		}
	}
	slices.Sort(dates)
	return dates, nil
}

func (m *MemoryStore) Slots(_ context.Context, key Key) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.days[key]), nil
}

func (m *MemoryStore) Reserve(_ context.Context, key Key, slotTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(key, slotTime)
	if i < 0 {
		return ErrSlotNotFound
	}
	if !m.days[key][i].Available {
		return ErrNotAvailable
	}
	m.days[key][i].Available = false
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key Key, slotTime string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(key, slotTime)
	if i < 0 {
		return ErrSlotNotFound
	}
	m.days[key][i].Available = true
	return nil
}

func (m *MemoryStore) EnsureDay(_ context.Context, key Key, times []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := m.days[key]
	for _, t := range times {
		if m.indexIn(day, t) >= 0 {
			continue
		}
		day = append(day, Slot{Time: t, Available: true})
	}
	slices.SortStableFunc(day, func(a, b Slot) int { return CompareSlotTimes(a.Time, b.Time) })
	if day == nil {
		day = []Slot{}
	}
	m.days[key] = day
	return nil
}

func (m *MemoryStore) PruneBefore(_ context.Context, doctorID string, channel Channel, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for k := range m.days {
		if k.DoctorID == doctorID && k.Channel == channel && k.Date < date {
			delete(m.days, k)
			pruned++
		}
	}
	return pruned, nil
}

func (m *MemoryStore) indexOf(key Key, slotTime string) int {
	return m.indexIn(m.days[key], slotTime)
}

func (m *MemoryStore) indexIn(day []Slot, slotTime string) int {
	for i, s := range day {
		if s.Time == slotTime {
			return i
		}
	}
	return -1
}
