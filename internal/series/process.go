package series

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// maxTimestampMillis is 2100-12-31T23:59:59.999Z.
var maxTimestampMillis = time.Date(2100, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()

// SelectLatest returns the last observation in the response.
// It relies on the provider returning observations in ascending date order
// and does not sort.
func SelectLatest(resp ProviderResponse) (Observation, error) {
	if len(resp.Observations) == 0 {
		return Observation{}, ErrNoObservations
	}
	return resp.Observations[len(resp.Observations)-1], nil
}

// Process picks the latest observation and normalizes its date and value.
// The date is checked before the value.
func Process(resp ProviderResponse, params QueryParameters) (NormalizedResult, error) {
	latest, err := SelectLatest(resp)
	if err != nil {
		return NormalizedResult{}, err
	}

	day, err := ParseCalendarDate(latest.Date)
	if err != nil {
		return NormalizedResult{}, ErrInvalidDate
	}
	timestamp := day.UnixMilli()
	if err := ValidateTimestamp(timestamp); err != nil {
		return NormalizedResult{}, err
	}

	value, err := ParseValue(latest.Value)
	if err != nil {
		return NormalizedResult{}, err
	}

	return NormalizedResult{
		Value:     value,
		Timestamp: timestamp,
		SeriesID:  params.SeriesID,
		Units:     params.UnitsLabel(),
	}, nil
}

// ParseValue parses a provider value into a finite float64.
// Plain decimal and scientific notation are accepted; NaN, infinities,
// hex floats and digit separators are not.
func ParseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if !isDecimalNotation(raw) {
		return 0, ErrInvalidValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidValue
	}
	return value, nil
}

// ValidateTimestamp checks that ms lies between the Unix epoch and the end of 2100.
func ValidateTimestamp(ms int64) error {
	if ms < 0 || ms > maxTimestampMillis {
		return ErrInvalidDate
	}
	return nil
}

// isDecimalNotation rejects the Go-only forms strconv.ParseFloat also accepts.
func isDecimalNotation(s string) bool {
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		return false
	}
	return !strings.Contains(s, "_")
}
