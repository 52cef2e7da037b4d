package indicatorpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nulllvoid/indicatorpipe/internal/logctx"
)

const (
	DefaultBaseURL      = "https://api.worldbank.org"
	DefaultFetchTimeout = 10 * time.Second
	MaxResponseSize     = 4 * 1024 * 1024 // 4 MB
)

// HTTPFetcher reads indicator observations from the World Bank v2 API.
type HTTPFetcher struct {
	BaseFetcher
	client     *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

type HTTPFetcherOption func(*HTTPFetcher)

func NewHTTPFetcher(opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		BaseFetcher: NewBaseFetcher("worldbank", 10),
		client:      &http.Client{},
		baseURL:     DefaultBaseURL,
		timeout:     DefaultFetchTimeout,
		retryDelay:  500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func HTTPWithBaseURL(base string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.baseURL = base
	}
}

func HTTPWithClient(c *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// HTTPWithTimeout bounds each individual call. Zero disables the bound.
func HTTPWithTimeout(d time.Duration) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// HTTPWithRetries retries network failures up to n extra times.
func HTTPWithRetries(n int, delay time.Duration) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.maxRetries = n
		f.retryDelay = delay
	}
}

func HTTPWithPriority(priority int) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.priority = priority
	}
}

// URL builds the request address for one key.
func (f *HTTPFetcher) URL(key CountryKey, indicator string, year int) string {
	q := url.Values{}
	q.Set("date", strconv.Itoa(year))
	q.Set("format", "json")
	return strings.TrimRight(f.baseURL, "/") +
		"/v2/country/" + url.PathEscape(string(key)) +
		"/indicator/" + url.PathEscape(indicator) +
		"?" + q.Encode()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	if err := key.Validate(); err != nil {
		return f.failed(key, indicator, year, ErrValidationFailed, "invalid key", err)
	}
	if err := ValidateIndicatorCode(indicator); err != nil {
		return f.failed(key, indicator, year, ErrValidationFailed, "invalid indicator", err)
	}
	if err := ValidateYear(year); err != nil {
		return f.failed(key, indicator, year, ErrValidationFailed, "invalid year", err)
	}

	for attempt := 0; ; attempt++ {
		rec, err := f.fetchOnce(ctx, key, indicator, year)
		if err == nil || !errors.Is(err, ErrNetwork) || attempt >= f.maxRetries || ctx.Err() != nil {
			return rec, err
		}

		logctx.FromContext(ctx).Debug("retrying indicator fetch",
			slog.String("key", string(key)),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))

		select {
		case <-time.After(f.retryDelay):
		case <-ctx.Done():
			return rec, err
		}
	}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(key, indicator, year), nil)
	if err != nil {
		return f.failed(key, indicator, year, ErrNetwork, "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return f.failed(key, indicator, year, ErrNetwork, "request timed out", fmt.Errorf("%w: %w", ErrTimeout, err))
		}
		return f.failed(key, indicator, year, ErrNetwork, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return f.failed(key, indicator, year, ErrNetwork, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return f.failed(key, indicator, year, ErrMalformedResponse, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return f.failed(key, indicator, year, ErrNetwork, "read body", err)
	}
	if len(body) > MaxResponseSize {
		return f.failed(key, indicator, year, ErrMalformedResponse, fmt.Sprintf("response exceeds %d bytes", MaxResponseSize), nil)
	}

	return f.decode(key, indicator, year, body)
}

type wbMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wbMeta struct {
	Message []wbMessage `json:"message"`
}

type wbRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type wbObservation struct {
	Indicator   wbRef    `json:"indicator"`
	Country     wbRef    `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// decode flattens the [metadata, [observation...]] envelope into a record.
func (f *HTTPFetcher) decode(key CountryKey, indicator string, year int, body []byte) (IndicatorRecord, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return f.failed(key, indicator, year, ErrMalformedResponse, "decode envelope", err)
	}
	if len(envelope) == 0 {
		return f.failed(key, indicator, year, ErrMalformedResponse, "empty envelope", nil)
	}

	var meta wbMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return f.failed(key, indicator, year, ErrMalformedResponse, "decode metadata", err)
	}
	if len(meta.Message) > 0 {
		m := meta.Message[0]
		return f.noData(key, indicator, year, fmt.Sprintf("api message %s: %s", m.ID, m.Value))
	}

	if len(envelope) < 2 || bytes.Equal(bytes.TrimSpace(envelope[1]), []byte("null")) {
		return f.noData(key, indicator, year, "no observations")
	}

	var observations []wbObservation
	if err := json.Unmarshal(envelope[1], &observations); err != nil {
		return f.failed(key, indicator, year, ErrMalformedResponse, "decode observations", err)
	}

	date := strconv.Itoa(year)
	var obs *wbObservation
	for i := range observations {
		if observations[i].Date == date {
			obs = &observations[i]
			break
		}
	}
	if obs == nil {
		return f.noData(key, indicator, year, "no observation for "+date)
	}

	echo := obs.CountryISO3
	if echo == "" {
		echo = obs.Country.ID
	}
	if len(echo) == 3 && !strings.EqualFold(echo, string(key)) {
		return f.failed(key, indicator, year, ErrMalformedResponse, fmt.Sprintf("response echoes country %s", echo), nil)
	}

	rec := f.absent(key, indicator, year)
	rec.Country = obs.Country.Value
	if obs.Value == nil {
		return rec, NewFetchError(f.name, key, ErrNoData, "null value", nil)
	}
	rec.Value = *obs.Value
	rec.Valid = true
	rec.Status = StatusOK
	return rec, nil
}
