package series

import (
	"encoding/json"
	"net/url"
	"time"
)

const (
	// DefaultUnits is the FRED units code used when a request omits units.
	DefaultUnits = "pc1"
	// DefaultFrequency is the FRED frequency code used when a request omits frequency.
	DefaultFrequency = "q"
	// DefaultUnitsLabel is reported in results and stored when a request omits units.
	DefaultUnitsLabel = "Percent Change"
)

// Status is the processing state of a persisted measurement.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusError     Status = "error"
)

// Valid reports whether s is one of the three statuses the store accepts.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusError:
		return true
	}
	return false
}

// Request is one job run as handed over by the HTTP layer.
type Request struct {
	ID   string       `json:"id"`
	Data *RequestData `json:"data"`
}

// RequestData carries the series query. Empty strings mean "not supplied".
type RequestData struct {
	SeriesID         string `json:"series_id"`
	ObservationStart string `json:"observation_start,omitempty"`
	ObservationEnd   string `json:"observation_end,omitempty"`
	Units            string `json:"units,omitempty"`
	Frequency        string `json:"frequency,omitempty"`
}

// QueryParameters is the validated projection of RequestData.
// Optional fields stay empty when omitted; defaults are applied by Values.
type QueryParameters struct {
	SeriesID         string `json:"series_id"`
	ObservationStart string `json:"observation_start,omitempty"`
	ObservationEnd   string `json:"observation_end,omitempty"`
	Units            string `json:"units,omitempty"`
	Frequency        string `json:"frequency,omitempty"`
}

// Values builds the provider query, filling in the units and frequency defaults.
func (q QueryParameters) Values() url.Values {
	values := url.Values{}
	values.Set("series_id", q.SeriesID)
	values.Set("file_type", "json")

	if q.ObservationStart != "" {
		values.Set("observation_start", q.ObservationStart)
	}
	if q.ObservationEnd != "" {
		values.Set("observation_end", q.ObservationEnd)
	}

	units := q.Units
	if units == "" {
		units = DefaultUnits
	}
	values.Set("units", units)

	frequency := q.Frequency
	if frequency == "" {
		frequency = DefaultFrequency
	}
	values.Set("frequency", frequency)

	return values
}

// UnitsLabel is the units value reported back to callers.
func (q QueryParameters) UnitsLabel() string {
	if q.Units == "" {
		return DefaultUnitsLabel
	}
	return q.Units
}

// Observation is a single raw (date, value) pair reported by the provider.
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// ProviderResponse holds the decoded observations plus the untouched payload.
// Observations are expected in ascending date order.
type ProviderResponse struct {
	Observations []Observation
	Raw          json.RawMessage
}

// NormalizedResult is the value extracted from the latest observation.
type NormalizedResult struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"` // epoch millis, UTC midnight
	SeriesID  string  `json:"series_id"`
	Units     string  `json:"units"`
}

// Measurement is the persisted record of a fetched observation.
type Measurement struct {
	ID           string    `json:"id"`
	Value        float64   `json:"value"`
	Date         time.Time `json:"date"` // always UTC midnight
	SeriesID     string    `json:"series_id"`
	Units        string    `json:"units"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ResponseEnvelope is the body returned for every job run.
type ResponseEnvelope struct {
	JobRunID   string            `json:"jobRunID"`
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Result     *NormalizedResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	Data       json.RawMessage   `json:"data,omitempty"`
}
