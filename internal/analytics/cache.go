package analytics

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/tickvault/internal/storage/types"
)

// ForecastCache memoizes forecasts by their derivation key (ticker,
// as-of date, observation count). Concurrent requests for the same key
// share one computation through singleflight.
//
// A forecast is ephemeral: the cache is in-process only and a changed
// history produces a new key, so stale entries are never served for a
// different input.
type ForecastCache struct {
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*types.Forecast
}

// NewForecastCache creates an empty cache.
func NewForecastCache() *ForecastCache {
	return &ForecastCache{cache: make(map[string]*types.Forecast)}
}

func forecastKey(bars []types.Bar) string {
	last := bars[len(bars)-1]
	return fmt.Sprintf("%s@%s/n%d", last.Ticker, types.FormatDate(last.Date), len(bars))
}

// Get returns the forecast for the given history, computing it at most
// once per derivation key. Errors are not cached; a failed computation
// is retried on the next call.
func (c *ForecastCache) Get(bars []types.Bar) (*types.Forecast, error) {
	if len(bars) < 2 {
		// Let ForecastNext produce the canonical error.
		return ForecastNext(bars)
	}

	key := forecastKey(bars)

	c.mu.RLock()
	if f, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		f, err := ForecastNext(bars)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = f
		c.mu.Unlock()

		return f, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*types.Forecast), nil
}

// Len returns the number of cached forecasts.
func (c *ForecastCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
