package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/series-adapter/internal/metrics"
	"github.com/i474232898/series-adapter/internal/series"
	"github.com/i474232898/series-adapter/internal/store"
)

type staticProvider struct {
	resp series.ProviderResponse
	err  error
}

func (p staticProvider) Name() string { return "static" }

func (p staticProvider) FetchObservations(context.Context, series.QueryParameters) (series.ProviderResponse, error) {
	return p.resp, p.err
}

func gdpProvider(value string) staticProvider {
	return staticProvider{resp: series.ProviderResponse{
		Observations: []series.Observation{
			{Date: "2023-11-01", Value: "2.0"},
			{Date: "2023-12-01", Value: value},
		},
		Raw: json.RawMessage(`{"observations":[{"date":"2023-11-01","value":"2.0"},{"date":"2023-12-01","value":"` + value + `"}]}`),
	}}
}

func newTestApp(t *testing.T, provider series.Provider) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore(0)
	svc := series.NewService(provider, series.NewPersistenceCoordinator(mem, nil, nil))
	return NewApp(svc, metrics.NewCollector().Handler()), mem
}

func postJob(t *testing.T, app *fiber.App, body string) (int, series.ResponseEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var env series.ResponseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func get(t *testing.T, app *fiber.App, method, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, gdpProvider("2.5"))

	for _, path := range []string{"/", "/health"} {
		status, body := get(t, app, http.MethodGet, path)
		if status != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusOK, status)
		}
		if !strings.Contains(string(body), `"ok"`) {
			t.Fatalf("%s: unexpected body %s", path, body)
		}
	}
}

func TestJobRunSuccess(t *testing.T) {
	app, mem := newTestApp(t, gdpProvider("2.5"))

	status, env := postJob(t, app, `{"id":"1","data":{"series_id":"GDP"}}`)
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if env.JobRunID != "1" || env.Status != "success" || env.Result == nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Result.Value != 2.5 || env.Result.Units != "Percent Change" || env.Result.SeriesID != "GDP" {
		t.Fatalf("unexpected result: %+v", *env.Result)
	}
	if want := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC).UnixMilli(); env.Result.Timestamp != want {
		t.Fatalf("expected timestamp %d, got %d", want, env.Result.Timestamp)
	}
	if len(env.Data) == 0 {
		t.Fatalf("expected raw provider payload in data")
	}

	latest, err := mem.Latest(context.Background())
	if err != nil || latest == nil {
		t.Fatalf("expected a processed measurement, got %v (err %v)", latest, err)
	}
	if latest.Value != 2.5 {
		t.Fatalf("expected persisted value 2.5, got %v", latest.Value)
	}
}

func TestJobRunMalformedBody(t *testing.T) {
	app, _ := newTestApp(t, gdpProvider("2.5"))

	tests := []struct {
		body      string
		wantJobID string
	}{
		{`not json`, "0"},
		{`{"data":{"series_id":"GDP"}}`, "0"},
		{`{"id":"5"}`, "5"},
	}
	for _, tt := range tests {
		status, env := postJob(t, app, tt.body)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", tt.body, http.StatusBadRequest, status)
		}
		if env.JobRunID != tt.wantJobID || env.Error != "Invalid request body" || env.Status != "errored" {
			t.Fatalf("%s: unexpected envelope %+v", tt.body, env)
		}
	}
}

func TestJobRunValidationError(t *testing.T) {
	app, _ := newTestApp(t, gdpProvider("2.5"))

	status, env := postJob(t, app, `{"id":"1","data":{"series_id":""}}`)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, status)
	}
	if env.Error != "series_id is required" || env.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestJobRunNormalizationErrorIsRecorded(t *testing.T) {
	app, mem := newTestApp(t, gdpProvider("invalid"))

	status, env := postJob(t, app, `{"id":"1","data":{"series_id":"GDP"}}`)
	if status != http.StatusInternalServerError || env.Error != "Invalid value" {
		t.Fatalf("unexpected response %d %+v", status, env)
	}

	day := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	ms, err := mem.ByDateRange(context.Background(), day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms) != 1 || ms[0].Status != series.StatusError || ms[0].ErrorMessage != "Invalid value" {
		t.Fatalf("expected one errored measurement, got %+v", ms)
	}
}

func TestMeasurementEndpoints(t *testing.T) {
	app, _ := newTestApp(t, gdpProvider("2.5"))

	status, _ := get(t, app, http.MethodGet, "/api/v1/measurements/latest")
	if status != http.StatusNotFound {
		t.Fatalf("expected status %d before any job, got %d", http.StatusNotFound, status)
	}

	postJob(t, app, `{"id":"1","data":{"series_id":"GDP"}}`)

	status, body := get(t, app, http.MethodGet, "/api/v1/measurements/latest")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	var latest series.Measurement
	if err := json.Unmarshal(body, &latest); err != nil {
		t.Fatalf("decode measurement: %v", err)
	}
	if latest.Status != series.StatusProcessed || latest.Value != 2.5 {
		t.Fatalf("unexpected measurement: %+v", latest)
	}

	status, body = get(t, app, http.MethodGet, "/api/v1/measurements?from=2023-11-15&to=2023-12-15")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, status, body)
	}
	var ranged struct {
		From         string               `json:"from"`
		Measurements []series.Measurement `json:"measurements"`
	}
	if err := json.Unmarshal(body, &ranged); err != nil {
		t.Fatalf("decode range: %v", err)
	}
	if ranged.From != "2023-11-15" || len(ranged.Measurements) != 1 {
		t.Fatalf("unexpected range body: %s", body)
	}

	status, _ = get(t, app, http.MethodGet, "/api/v1/measurements?from=2023-12-15&to=2023-11-15")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status %d for inverted range, got %d", http.StatusBadRequest, status)
	}
	status, _ = get(t, app, http.MethodGet, "/api/v1/measurements?from=2023-11-15")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status %d for missing bound, got %d", http.StatusBadRequest, status)
	}

	status, body = get(t, app, http.MethodDelete, "/api/v1/measurements?before=2024-01-01")
	if status != http.StatusOK || !strings.Contains(string(body), `"deleted":1`) {
		t.Fatalf("unexpected delete response %d %s", status, body)
	}
	status, _ = get(t, app, http.MethodDelete, "/api/v1/measurements")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status %d without before, got %d", http.StatusBadRequest, status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, gdpProvider("2.5"))

	status, body := get(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected prometheus exposition, got %s", body)
	}
}

func TestParseDay(t *testing.T) {
	want := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2023-02-01", "2023-02-01T15:04:05Z", "1675263845"} {
		got, err := parseDay(in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: expected %v, got %v", in, want, got)
		}
	}
	if _, err := parseDay("yesterday"); err == nil {
		t.Fatalf("expected error for unparseable day")
	}
}
