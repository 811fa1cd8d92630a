package booking

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/gym-scheduler/internal/interval"
)

// availabilityCache memoises recent availability answers so live form
// feedback does not re-run the detector for identical queries while the
// schedule is unchanged. Any committed mutation purges it, which preserves
// the idempotence guarantee: identical queries against unchanged state see
// identical answers.
type availabilityCache struct {
	lru *expirable.LRU[string, Availability]
}

func newAvailabilityCache(size int, ttl time.Duration) *availabilityCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &availabilityCache{lru: expirable.NewLRU[string, Availability](size, nil, ttl)}
}

func (c *availabilityCache) Get(key string) (Availability, bool) {
	if c == nil || c.lru == nil {
		return Availability{}, false
	}
	cached, ok := c.lru.Get(key)
	if !ok {
		return Availability{}, false
	}
	return Availability{
		Available: cached.Available,
		Conflicts: append([]string(nil), cached.Conflicts...),
	}, true
}

func (c *availabilityCache) Store(key string, availability Availability) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, Availability{
		Available: availability.Available,
		Conflicts: append([]string(nil), availability.Conflicts...),
	})
}

func (c *availabilityCache) Purge() {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Purge()
}

func availabilityCacheKey(trainerID string, span interval.Span, excludeSessionID string) string {
	builder := strings.Builder{}
	builder.WriteString(trainerID)
	builder.WriteString("|")
	builder.WriteString(span.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(span.End.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(excludeSessionID)
	return builder.String()
}
