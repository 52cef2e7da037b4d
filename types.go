package indicatorpipe

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// CountryKey is an ISO-3166 alpha-3 code.
type CountryKey string

func ParseCountryKey(s string) (CountryKey, error) {
	key := CountryKey(strings.ToUpper(strings.TrimSpace(s)))
	if err := key.Validate(); err != nil {
		return "", err
	}
	return key, nil
}

func (k CountryKey) Validate() error {
	if len(k) != 3 {
		return NewValidationError("key", "'"+string(k)+"' must be exactly 3 letters")
	}
	for i := 0; i < len(k); i++ {
		if k[i] < 'A' || k[i] > 'Z' {
			return NewValidationError("key", "'"+string(k)+"' must be uppercase ASCII letters")
		}
	}
	return nil
}

func (k CountryKey) String() string { return string(k) }

type FetchStatus string

const (
	StatusOK     FetchStatus = "ok"
	StatusNoData FetchStatus = "no_data"
	StatusFailed FetchStatus = "failed"
)

// IndicatorRecord is a single observation for one key. Valid is false when the
// value is absent.
type IndicatorRecord struct {
	ID        int         `json:"id"`
	Key       CountryKey  `json:"key"`
	Country   string      `json:"country,omitempty"`
	Indicator string      `json:"indicator"`
	Year      int         `json:"year"`
	Value     float64     `json:"value"`
	Valid     bool        `json:"valid"`
	Status    FetchStatus `json:"status"`
	Source    string      `json:"source,omitempty"`
	Err       error       `json:"-"`
}

func (r IndicatorRecord) Absent() bool { return !r.Valid }

// IndicatorTable holds one record per requested key in request order. Record
// IDs are 1-based positions.
type IndicatorTable struct {
	Indicator string
	Year      int
	Records   []IndicatorRecord
}

func NewIndicatorTable(indicator string, year int, records []IndicatorRecord) *IndicatorTable {
	for i := range records {
		records[i].ID = i + 1
	}
	return &IndicatorTable{Indicator: indicator, Year: year, Records: records}
}

func (t *IndicatorTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Lookup resolves a positional identifier. Out-of-range identifiers report
// false.
func (t *IndicatorTable) Lookup(id int) (IndicatorRecord, bool) {
	if id < 1 || id > t.Len() {
		return IndicatorRecord{}, false
	}
	return t.Records[id-1], true
}

func (t *IndicatorTable) Keys() []CountryKey {
	keys := make([]CountryKey, 0, t.Len())
	for _, r := range t.Records {
		keys = append(keys, r.Key)
	}
	return keys
}

// FailedKeys lists keys whose fetch failed, in request order, once each.
func (t *IndicatorTable) FailedKeys() []CountryKey {
	return t.keysWithStatus(StatusFailed)
}

func (t *IndicatorTable) NoDataKeys() []CountryKey {
	return t.keysWithStatus(StatusNoData)
}

func (t *IndicatorTable) keysWithStatus(status FetchStatus) []CountryKey {
	seen := mapset.NewThreadUnsafeSet[CountryKey]()
	var keys []CountryKey
	for _, r := range t.Records {
		if r.Status == status && seen.Add(r.Key) {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

func (t *IndicatorTable) PresentCount() int {
	n := 0
	for _, r := range t.Records {
		if r.Valid {
			n++
		}
	}
	return n
}

// Err combines the errors of failed records. No-data records are not
// failures and do not contribute.
func (t *IndicatorTable) Err() error {
	var errs *multierror.Error
	for _, r := range t.Records {
		if r.Status == StatusFailed && r.Err != nil {
			errs = multierror.Append(errs, r.Err)
		}
	}
	return errs.ErrorOrNil()
}
