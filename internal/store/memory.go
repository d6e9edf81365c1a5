package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/series-adapter/internal/series"
)

var (
	// ErrNotFound is returned when no measurement has the requested id.
	ErrNotFound = errors.New("measurement not found")
	// ErrInvalidTransition is returned when a measurement is no longer pending,
	// or the requested status is not a legal target.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// MemoryStore is a concurrency-safe in-memory implementation of series.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// insertion order; ids index into byID
	order []string
	byID  map[string]*series.Measurement

	// retention configuration
	maxHistory int // max number of measurements kept (0 = unlimited)

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*series.Measurement),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// Insert stores a copy of m under a new id and enforces retention by count.
func (s *MemoryStore) Insert(_ context.Context, m series.Measurement) (string, error) {
	if !m.Status.Valid() {
		return "", ErrInvalidTransition
	}

	now := s.now().UTC()
	m.ID = uuid.NewString()
	m.Date = series.MidnightUTC(m.Date)
	if m.Units == "" {
		m.Units = series.DefaultUnitsLabel
	}
	m.CreatedAt = now
	m.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[m.ID] = &m
	s.order = append(s.order, m.ID)

	if s.maxHistory > 0 && len(s.order) > s.maxHistory {
		over := len(s.order) - s.maxHistory
		for _, id := range s.order[:over] {
			delete(s.byID, id)
		}
		s.order = s.order[over:]
	}

	return m.ID, nil
}

// UpdateStatus moves a pending measurement to status.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status series.Status, errorMessage string) error {
	if status != series.StatusProcessed && status != series.StatusError {
		return ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if m.Status != series.StatusPending {
		return ErrInvalidTransition
	}

	m.Status = status
	m.ErrorMessage = errorMessage
	m.UpdatedAt = s.now().UTC()
	return nil
}

// Latest returns the processed measurement with the newest date.
// Ties go to the most recently inserted.
func (s *MemoryStore) Latest(_ context.Context) (*series.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *series.Measurement
	for _, id := range s.order {
		m := s.byID[id]
		if m.Status != series.StatusProcessed {
			continue
		}
		if latest == nil || !m.Date.Before(latest.Date) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// ByDateRange returns all measurements dated within [start, end], newest first.
func (s *MemoryStore) ByDateRange(_ context.Context, start, end time.Time) ([]series.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []series.Measurement
	for _, id := range s.order {
		m := s.byID[id]
		if m.Date.Before(start) || m.Date.After(end) {
			continue
		}
		result = append(result, *m)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// DeleteOlderThan removes measurements dated strictly before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	var deleted int64
	for _, id := range s.order {
		if s.byID[id].Date.Before(cutoff) {
			delete(s.byID, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}
