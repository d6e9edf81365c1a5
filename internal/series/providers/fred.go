package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/series-adapter/internal/series"
)

// DefaultFREDBaseURL is the FRED series observations endpoint.
const DefaultFREDBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// maxPayloadBytes bounds how much of a FRED response is read.
const maxPayloadBytes = 32 << 20

// FetchObserver is told how long each FRED fetch took and whether it failed.
type FetchObserver interface {
	ObserveFetch(provider string, elapsed time.Duration, err error)
}

// FREDProvider implements the series.Provider interface for the FRED API.
type FREDProvider struct {
	name     string
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	observer FetchObserver
}

// FREDOption customises a FREDProvider.
type FREDOption func(*FREDProvider)

// WithBaseURL points the provider at another endpoint.
func WithBaseURL(u string) FREDOption {
	return func(p *FREDProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithBackoff replaces the retry policy.
func WithBackoff(b BackoffConfig) FREDOption {
	return func(p *FREDProvider) {
		p.httpCfg.Backoff = b
	}
}

// WithFetchObserver reports fetch latency to o.
func WithFetchObserver(o FetchObserver) FREDOption {
	return func(p *FREDProvider) {
		p.observer = o
	}
}

func NewFREDProvider(client *http.Client, apiKey string, opts ...FREDOption) *FREDProvider {
	p := &FREDProvider{
		name:    "fred",
		apiKey:  apiKey,
		baseURL: DefaultFREDBaseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("fred"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *FREDProvider) Name() string {
	return p.name
}

// FetchObservations queries FRED for params. Every failure is returned as a
// *series.UpstreamError whose message starts with "FRED API Error: ".
func (p *FREDProvider) FetchObservations(ctx context.Context, params series.QueryParameters) (resp series.ProviderResponse, err error) {
	if p.observer != nil {
		started := time.Now()
		defer func() { p.observer.ObserveFetch(p.name, time.Since(started), err) }()
	}

	if p.apiKey == "" {
		return series.ProviderResponse{}, upstreamError(fmt.Errorf("api key is not configured"))
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := params.Values()
		values.Set("api_key", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	httpResp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return series.ProviderResponse{}, upstreamError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxPayloadBytes))
	if err != nil {
		return series.ProviderResponse{}, upstreamError(fmt.Errorf("read body: %w", err))
	}

	var payload struct {
		Observations []series.Observation `json:"observations"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return series.ProviderResponse{}, upstreamError(fmt.Errorf("decode body: %w", err))
	}

	return series.ProviderResponse{
		Observations: payload.Observations,
		Raw:          json.RawMessage(bytes.TrimSpace(raw)),
	}, nil
}

func upstreamError(err error) *series.UpstreamError {
	return &series.UpstreamError{Message: "FRED API Error: " + err.Error(), Err: err}
}
