package registry

import (
	"log/slog"
	"math"
	"time"
)

// TTLRemaining computes createdAt + ttlSeconds - nowEpoch. A nil ttlSeconds
// means the entry never expires (nil returned). A createdAt that fails to
// parse is logged as a warning and treated as never-expiring
// (math.MaxInt64), matching the original design's deliberate bias toward
// not expiring state the operator may still need.
func TTLRemaining(log *slog.Logger, createdAt string, ttlSeconds *int64, nowEpoch int64) *int64 {
	if ttlSeconds == nil {
		return nil
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		log.Warn("malformed created_at timestamp in registry entry, treating as never-expiring", "created_at", createdAt, "err", err)
		max := int64(math.MaxInt64)
		return &max
	}

	remaining := t.Unix() + *ttlSeconds - nowEpoch
	return &remaining
}
