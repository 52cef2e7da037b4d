package indicatorpipe

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type cacheKey struct {
	Key       CountryKey
	Indicator string
	Year      int
}

type cacheValue struct {
	IndicatorRecord
	error
}

// CachingFetcher memoises another fetcher. Values and no-data answers are
// cached; network and malformed-response failures are not.
type CachingFetcher struct {
	next  Fetcher
	cache *ttlcache.Cache[cacheKey, cacheValue]
}

func NewCachingFetcher(next Fetcher, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{
		next: next,
		cache: ttlcache.New[cacheKey, cacheValue](
			ttlcache.WithTTL[cacheKey, cacheValue](ttl),
		),
	}
}

func (f *CachingFetcher) Name() string  { return f.next.Name() }
func (f *CachingFetcher) Priority() int { return f.next.Priority() }
func (f *CachingFetcher) Len() int      { return f.cache.Len() }

func (f *CachingFetcher) Fetch(ctx context.Context, key CountryKey, indicator string, year int) (IndicatorRecord, error) {
	var (
		uncached    IndicatorRecord
		uncachedErr error
	)

	loader := ttlcache.LoaderFunc[cacheKey, cacheValue](
		func(cache *ttlcache.Cache[cacheKey, cacheValue], k cacheKey) *ttlcache.Item[cacheKey, cacheValue] {
			rec, err := f.next.Fetch(ctx, k.Key, k.Indicator, k.Year)
			if err != nil && !IsNoData(err) {
				uncached, uncachedErr = rec, err
				return nil
			}
			return cache.Set(k, cacheValue{IndicatorRecord: rec, error: err}, ttlcache.DefaultTTL)
		},
	)

	item := f.cache.Get(cacheKey{Key: key, Indicator: indicator, Year: year}, ttlcache.WithLoader(loader))
	if item == nil {
		return uncached, uncachedErr
	}
	return item.Value().IndicatorRecord, item.Value().error
}
