package series

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Job outcomes reported to the Observer.
const (
	OutcomeSuccess       = "success"
	OutcomeValidation    = "validation_error"
	OutcomeUpstream      = "upstream_error"
	OutcomeNormalization = "normalization_error"
)

// Service runs the job pipeline: validate, fetch, normalize, respond, persist.
type Service struct {
	provider    Provider
	persistence *PersistenceCoordinator
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithObserver reports job outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger used for job failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used to date measurements that lack a usable date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service. persistence may be nil.
func NewService(provider Provider, persistence *PersistenceCoordinator, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		persistence: persistence,
		observer:    nopObserver{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persistence exposes the coordinator for housekeeping callers.
func (s *Service) Persistence() *PersistenceCoordinator {
	return s.persistence
}

// Execute runs one job. It always returns a well-formed envelope; persistence
// runs after the envelope is built and cannot change it.
func (s *Service) Execute(ctx context.Context, req Request) ResponseEnvelope {
	started := time.Now()

	if req.Data == nil {
		s.observer.ObserveJob(OutcomeValidation, time.Since(started))
		return MalformedRequest(req.ID)
	}

	params, err := Validate(*req.Data)
	if err != nil {
		return s.failed(req.ID, OutcomeValidation, err, started)
	}

	resp, err := s.fetch(ctx, params)
	if err != nil {
		return s.failed(req.ID, OutcomeUpstream, err, started)
	}

	result, err := Process(resp, params)
	if err != nil {
		env := s.failed(req.ID, OutcomeNormalization, err, started)
		s.persistence.RecordOutcome(ctx, s.failedMeasurement(resp, params), err)
		return env
	}

	env := Success(req.ID, result, resp.Raw)
	s.observer.ObserveJob(OutcomeSuccess, time.Since(started))

	s.persistence.RecordOutcome(ctx, Measurement{
		Value:    result.Value,
		Date:     time.UnixMilli(result.Timestamp),
		SeriesID: result.SeriesID,
		Units:    result.Units,
	}, nil)

	return env
}

func (s *Service) fetch(ctx context.Context, params QueryParameters) (ProviderResponse, error) {
	if s.provider == nil {
		return ProviderResponse{}, &UpstreamError{Message: "no provider configured"}
	}
	resp, err := s.provider.FetchObservations(ctx, params)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return ProviderResponse{}, upstream
		}
		return ProviderResponse{}, &UpstreamError{Message: err.Error(), Err: err}
	}
	return resp, nil
}

func (s *Service) failed(jobRunID, outcome string, err error, started time.Time) ResponseEnvelope {
	s.observer.ObserveJob(outcome, time.Since(started))
	s.logger.Warn("adapter error: "+err.Error(), "job_run_id", jobRunID, "outcome", outcome)
	return Failure(jobRunID, err)
}

// failedMeasurement keeps whatever the latest observation still offers:
// its date when parseable (else today) and its value when parseable (else 0).
func (s *Service) failedMeasurement(resp ProviderResponse, params QueryParameters) Measurement {
	m := Measurement{
		Date:     MidnightUTC(s.now()),
		SeriesID: params.SeriesID,
		Units:    params.UnitsLabel(),
	}
	latest, err := SelectLatest(resp)
	if err != nil {
		return m
	}
	if day, err := ParseCalendarDate(latest.Date); err == nil && ValidateTimestamp(day.UnixMilli()) == nil {
		m.Date = day
	}
	if v, err := ParseValue(latest.Value); err == nil {
		m.Value = v
	}
	return m
}
