package series

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PersistenceCoordinator records measurements and advances their status.
// Record and AdvanceStatus never return errors: failures are logged and counted.
// A coordinator without a store is disabled and does nothing.
type PersistenceCoordinator struct {
	store    Store
	observer Observer
	logger   *slog.Logger
}

// NewPersistenceCoordinator wires a coordinator around store. store may be nil.
func NewPersistenceCoordinator(store Store, observer Observer, logger *slog.Logger) *PersistenceCoordinator {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceCoordinator{store: store, observer: observer, logger: logger}
}

// Enabled reports whether measurements are persisted at all.
func (p *PersistenceCoordinator) Enabled() bool {
	return p != nil && p.store != nil
}

// Record inserts m in pending state with its date at UTC midnight.
// ok is false when the insert failed or persistence is disabled.
func (p *PersistenceCoordinator) Record(ctx context.Context, m Measurement) (id string, ok bool) {
	if !p.Enabled() {
		return "", false
	}

	m.Status = StatusPending
	m.ErrorMessage = ""
	m.Date = MidnightUTC(m.Date)
	if m.Units == "" {
		m.Units = DefaultUnitsLabel
	}

	err := p.guard("insert", func() error {
		var insertErr error
		id, insertErr = p.store.Insert(ctx, m)
		return insertErr
	})
	if err != nil {
		p.fail(err, "series_id", m.SeriesID)
		return "", false
	}
	return id, true
}

// AdvanceStatus moves measurement id from pending to processed or error.
func (p *PersistenceCoordinator) AdvanceStatus(ctx context.Context, id string, status Status, errorMessage string) bool {
	if !p.Enabled() {
		return false
	}
	if status != StatusProcessed && status != StatusError {
		p.fail(&PersistenceError{Op: "update_status", Err: fmt.Errorf("illegal target status %q", status)}, "id", id)
		return false
	}
	if status == StatusProcessed {
		errorMessage = ""
	}

	err := p.guard("update_status", func() error {
		return p.store.UpdateStatus(ctx, id, status, errorMessage)
	})
	if err != nil {
		p.fail(err, "id", id)
		return false
	}
	return true
}

// RecordOutcome inserts m and then advances it to processed, or to error when
// cause is non-nil. The advance is skipped if the insert failed.
func (p *PersistenceCoordinator) RecordOutcome(ctx context.Context, m Measurement, cause error) {
	if !p.Enabled() {
		return
	}

	id, ok := p.Record(ctx, m)
	if !ok {
		return
	}

	if cause != nil {
		p.AdvanceStatus(ctx, id, StatusError, cause.Error())
		return
	}
	p.AdvanceStatus(ctx, id, StatusProcessed, "")
}

// Latest returns the newest processed measurement, or nil when there is none.
func (p *PersistenceCoordinator) Latest(ctx context.Context) (*Measurement, error) {
	if !p.Enabled() {
		return nil, nil
	}
	m, err := p.store.Latest(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "latest", Err: err}
	}
	return m, nil
}

// MeasurementsInRange returns measurements dated within the UTC days of start and end.
func (p *PersistenceCoordinator) MeasurementsInRange(ctx context.Context, start, end time.Time) ([]Measurement, error) {
	if !p.Enabled() {
		return nil, nil
	}
	ms, err := p.store.ByDateRange(ctx, MidnightUTC(start), MidnightUTC(end))
	if err != nil {
		return nil, &PersistenceError{Op: "range", Err: err}
	}
	return ms, nil
}

// DeleteOlderThan removes measurements dated before the UTC day of cutoff.
func (p *PersistenceCoordinator) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	n, err := p.store.DeleteOlderThan(ctx, MidnightUTC(cutoff))
	if err != nil {
		return 0, &PersistenceError{Op: "delete", Err: err}
	}
	return n, nil
}

// guard runs fn and converts both errors and panics into a PersistenceError.
func (p *PersistenceCoordinator) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PersistenceError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (p *PersistenceCoordinator) fail(err error, attrs ...any) {
	op := "unknown"
	if pe, ok := err.(*PersistenceError); ok {
		op = pe.Op
	}
	p.observer.ObservePersistenceFailure(op)
	p.logger.Error("persistence failed", append([]any{"op", op, "error", err}, attrs...)...)
}
