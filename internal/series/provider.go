package series

import (
	"context"
	"time"
)

// Provider abstracts the economic data source (FRED).
type Provider interface {
	Name() string
	FetchObservations(ctx context.Context, params QueryParameters) (ProviderResponse, error)
}

// Store is the contract persistent measurement stores must satisfy.
type Store interface {
	// Insert stores m and returns its generated id. The row either exists with
	// m's status or not at all.
	Insert(ctx context.Context, m Measurement) (string, error)
	// UpdateStatus moves a pending measurement to status.
	UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) error
	// Latest returns the processed measurement with the newest date, or nil.
	Latest(ctx context.Context) (*Measurement, error)
	// ByDateRange returns measurements dated within [start, end], newest first.
	ByDateRange(ctx context.Context, start, end time.Time) ([]Measurement, error)
	// DeleteOlderThan removes measurements dated strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Observer receives pipeline events. metrics.Collector implements it.
type Observer interface {
	ObserveJob(outcome string, elapsed time.Duration)
	ObservePersistenceFailure(op string)
}

type nopObserver struct{}

func (nopObserver) ObserveJob(string, time.Duration) {}
func (nopObserver) ObservePersistenceFailure(string) {}
