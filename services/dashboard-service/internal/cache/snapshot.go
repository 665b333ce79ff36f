// Package cache distributes the latest metrics snapshot through Redis:
// SET for late readers, PUBLISH for live ones.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
)

const (
	SnapshotKey     = "dashboard:metrics:snapshot"
	SnapshotChannel = "dashboard:metrics:updates"
)

type SnapshotCache struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewSnapshotCache(rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, logger: logger, ttl: ttl}
}

// Publish stores the snapshot and fans it out. Cache failures are logged
// and swallowed: the in-process snapshot stays authoritative and the HTTP
// endpoint keeps serving.
func (c *SnapshotCache) Publish(ctx context.Context, snap aggregator.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		c.logger.Error("snapshot marshal failed", "err", err)
		return
	}
	if err := c.rdb.Set(ctx, SnapshotKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache set failed", "err", err)
	}
	if err := c.rdb.Publish(ctx, SnapshotChannel, payload).Err(); err != nil {
		c.logger.Warn("snapshot publish failed", "err", err)
	}
}

// Load returns the cached snapshot, if any.
func (c *SnapshotCache) Load(ctx context.Context) (aggregator.Snapshot, bool) {
	payload, err := c.rdb.Get(ctx, SnapshotKey).Bytes()
	if err != nil {
		return aggregator.Snapshot{}, false
	}
	var snap aggregator.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return aggregator.Snapshot{}, false
	}
	return snap, true
}
