package series

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Accepted FRED codes.
var (
	validUnits       = []string{"lin", "chg", "ch1", "pch", "pc1", "pca", "cch", "cca", "log"}
	validFrequencies = []string{"d", "w", "bw", "m", "q", "sa", "a"}
)

var (
	validate = newValidator()

	unitsRule     = "omitempty,oneof=" + strings.Join(validUnits, " ")
	frequencyRule = "omitempty,oneof=" + strings.Join(validFrequencies, " ")
)

const calendarDateTag = "calendar_date"

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation(calendarDateTag, func(fl validator.FieldLevel) bool {
		return IsValidDate(fl.Field().String())
	})
	return v
}

// Validate checks a request's data and returns the query parameters for the provider.
// Fields are checked in a fixed order and the first failure is returned.
func Validate(data RequestData) (QueryParameters, error) {
	params := QueryParameters{
		SeriesID:         strings.TrimSpace(data.SeriesID),
		ObservationStart: strings.TrimSpace(data.ObservationStart),
		ObservationEnd:   strings.TrimSpace(data.ObservationEnd),
		Units:            strings.TrimSpace(data.Units),
		Frequency:        strings.TrimSpace(data.Frequency),
	}

	if err := validate.Var(params.SeriesID, "required"); err != nil {
		return QueryParameters{}, requiredFieldError("series_id")
	}
	if err := validate.Var(params.ObservationStart, "omitempty,"+calendarDateTag); err != nil {
		return QueryParameters{}, invalidFormatError("observation_start")
	}
	if err := validate.Var(params.ObservationEnd, "omitempty,"+calendarDateTag); err != nil {
		return QueryParameters{}, invalidFormatError("observation_end")
	}

	if params.ObservationStart != "" && params.ObservationEnd != "" {
		start, _ := ParseCalendarDate(params.ObservationStart)
		end, _ := ParseCalendarDate(params.ObservationEnd)
		if end.Before(start) {
			return QueryParameters{}, &ValidationError{
				Field:   "observation_end",
				Message: "End date must be after start date",
			}
		}
	}

	if err := validate.Var(params.Units, unitsRule); err != nil {
		return QueryParameters{}, invalidFormatError("units")
	}
	if err := validate.Var(params.Frequency, frequencyRule); err != nil {
		return QueryParameters{}, invalidFormatError("frequency")
	}

	return params, nil
}

// IsValidDate reports whether s is a real calendar day, either as YYYY-MM-DD
// or as an RFC 3339 date-time.
func IsValidDate(s string) bool {
	_, err := ParseCalendarDate(s)
	return err == nil
}

// IsValidUnit reports whether unit is a FRED units code. Codes are case-sensitive.
func IsValidUnit(unit string) bool {
	return validate.Var(strings.TrimSpace(unit), "required,"+unitsRule) == nil
}

// IsValidFrequency reports whether freq is a FRED frequency code. Codes are case-sensitive.
func IsValidFrequency(freq string) bool {
	return validate.Var(strings.TrimSpace(freq), "required,"+frequencyRule) == nil
}

// ParseCalendarDate parses s and returns midnight UTC of the day it names.
// Date-times are converted to UTC before truncation.
func ParseCalendarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "T") {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
		return MidnightUTC(ts), nil
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return time.Time{}, ErrInvalidDate
	}
	for _, part := range parts {
		if !allDigits(part) {
			return time.Time{}, ErrInvalidDate
		}
	}
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	if month < 1 || month > 12 || day < 1 || day > daysInMonth(year, month) {
		return time.Time{}, ErrInvalidDate
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// allDigits reports whether s is made of ASCII digits only. strconv.Atoi alone
// would also take a sign.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// MidnightUTC truncates t to the start of its UTC calendar day.
func MidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInMonth(year, month int) int {
	switch month {
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
