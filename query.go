package indicatorpipe

import (
	"fmt"
	"regexp"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// MinYear is the first year the World Bank indicator series cover.
const MinYear = 1960

var indicatorCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.]*$`)

// Query is the batch request: an ordered key list, one indicator code and a
// year. Key order defines the positional identifiers of the resulting table.
type Query struct {
	Keys      []CountryKey
	Indicator string
	Year      int
}

func NewQuery(keys []string, indicator string, year int) (Query, error) {
	parsed, err := ParseKeys(keys)
	if err != nil {
		return Query{}, err
	}
	q := Query{Keys: parsed, Indicator: indicator, Year: year}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func ParseKeys(keys []string) ([]CountryKey, error) {
	parsed := make([]CountryKey, 0, len(keys))
	for i, k := range keys {
		key, err := ParseCountryKey(k)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i+1, err)
		}
		parsed = append(parsed, key)
	}
	return parsed, nil
}

func (q Query) Validate() error {
	if len(q.Keys) == 0 {
		return NewValidationError("keys", "at least one key is required")
	}
	for _, k := range q.Keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	if err := ValidateIndicatorCode(q.Indicator); err != nil {
		return err
	}
	return ValidateYear(q.Year)
}

func ValidateIndicatorCode(code string) error {
	if !indicatorCodePattern.MatchString(code) {
		return NewValidationError("indicator", fmt.Sprintf("'%s' is not a valid indicator code", code))
	}
	return nil
}

func ValidateYear(year int) error {
	if year < MinYear || year > time.Now().Year() {
		return NewValidationError("year", fmt.Sprintf("%d must be between %d and %d", year, MinYear, time.Now().Year()))
	}
	return nil
}

// DuplicateKeys returns keys requested more than once, in first-repeat order.
// Duplicates are legal but usually mean the list drifted from the dataset
// encoding.
func (q Query) DuplicateKeys() []CountryKey {
	seen := mapset.NewThreadUnsafeSet[CountryKey]()
	reported := mapset.NewThreadUnsafeSet[CountryKey]()
	var dups []CountryKey
	for _, k := range q.Keys {
		if !seen.Add(k) && reported.Add(k) {
			dups = append(dups, k)
		}
	}
	return dups
}
