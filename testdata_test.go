package indicatorpipe_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nulllvoid/indicatorpipe"
)

func ptr(v float64) *float64 { return &v }

// worldBank is a fake of the World Bank v2 indicator endpoint. Keys missing
// from values get the API's "invalid value" message; a nil value is served
// as a JSON null observation.
type worldBank struct {
	mu     sync.Mutex
	values map[string]*float64
	delay  map[string]time.Duration
	status map[string]int
	raw    map[string]string
	calls  atomic.Int64
	paths  []string
}

func newWorldBank(values map[string]*float64) *worldBank {
	return &worldBank{
		values: values,
		delay:  map[string]time.Duration{},
		status: map[string]int{},
		raw:    map[string]string{},
	}
}

func (wb *worldBank) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(wb)
	t.Cleanup(srv.Close)
	return srv
}

func (wb *worldBank) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wb.calls.Add(1)
	wb.mu.Lock()
	wb.paths = append(wb.paths, r.URL.RequestURI())
	wb.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[0] != "v2" || parts[1] != "country" || parts[3] != "indicator" {
		http.NotFound(w, r)
		return
	}
	key, indicator, date := parts[2], parts[4], r.URL.Query().Get("date")

	if d, ok := wb.delay[key]; ok {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if code, ok := wb.status[key]; ok {
		w.WriteHeader(code)
		return
	}
	if body, ok := wb.raw[key]; ok {
		_, _ = w.Write([]byte(body))
		return
	}

	v, ok := wb.values[key]
	if !ok {
		_, _ = w.Write([]byte(`[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`))
		return
	}

	value, _ := json.Marshal(v)
	_, _ = fmt.Fprintf(w, `[{"page":1,"pages":1,"per_page":50,"lastupdated":"2024-06-28","total":1,"sourceid":"2"},`+
		`[{"indicator":{"id":%q,"value":"Life expectancy at birth, total (years)"},"country":{"id":"XX","value":"Country %s"},`+
		`"countryiso3code":%q,"date":%q,"value":%s,"unit":"","obs_status":"","decimal":1}]]`,
		indicator, key, key, date, value)
}

func (wb *worldBank) Paths() []string {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return append([]string(nil), wb.paths...)
}

// stubFetcher answers from a fixed map and records the keys it was asked for.
type stubFetcher struct {
	indicatorpipe.BaseFetcher
	values map[indicatorpipe.CountryKey]float64
	errs   map[indicatorpipe.CountryKey]error
	delay  map[indicatorpipe.CountryKey]time.Duration
	mu     sync.Mutex
	asked  []indicatorpipe.CountryKey
}

func newStubFetcher(name string, priority int, values map[indicatorpipe.CountryKey]float64) *stubFetcher {
	return &stubFetcher{
		BaseFetcher: indicatorpipe.NewBaseFetcher(name, priority),
		values:      values,
		errs:        map[indicatorpipe.CountryKey]error{},
		delay:       map[indicatorpipe.CountryKey]time.Duration{},
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, key indicatorpipe.CountryKey, indicator string, year int) (indicatorpipe.IndicatorRecord, error) {
	f.mu.Lock()
	f.asked = append(f.asked, key)
	f.mu.Unlock()

	if d, ok := f.delay[key]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return indicatorpipe.IndicatorRecord{Key: key, Status: indicatorpipe.StatusFailed},
				indicatorpipe.NewFetchError(f.Name(), key, indicatorpipe.ErrNetwork, "timeout", ctx.Err())
		}
	}
	if err, ok := f.errs[key]; ok {
		return indicatorpipe.IndicatorRecord{Key: key, Status: indicatorpipe.StatusFailed}, err
	}
	v, ok := f.values[key]
	if !ok {
		return indicatorpipe.IndicatorRecord{Key: key, Status: indicatorpipe.StatusNoData},
			indicatorpipe.NewFetchError(f.Name(), key, indicatorpipe.ErrNoData, "none", nil)
	}
	return indicatorpipe.IndicatorRecord{
		Key:       key,
		Indicator: indicator,
		Year:      year,
		Value:     v,
		Valid:     true,
		Status:    indicatorpipe.StatusOK,
		Source:    f.Name(),
	}, nil
}

func (f *stubFetcher) Asked() []indicatorpipe.CountryKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]indicatorpipe.CountryKey(nil), f.asked...)
}

func keys(codes ...string) []indicatorpipe.CountryKey {
	out := make([]indicatorpipe.CountryKey, len(codes))
	for i, c := range codes {
		out[i] = indicatorpipe.CountryKey(c)
	}
	return out
}

func networkErr(key string) error {
	return indicatorpipe.NewFetchError("stub", indicatorpipe.CountryKey(key), indicatorpipe.ErrNetwork, "connection refused", nil)
}
