package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PlaylistInsight/core/insight"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a dashboard is not cached.
var ErrCacheMiss = errors.New("dashboard not cached")

const (
	dashboardKeyPrefix = "insight:dashboard:"
	latestRunKey       = "insight:dashboard:latest"
	// DefaultTTL 看板缓存默认过期时间
	DefaultTTL = time.Hour
)

// SummaryCache 缓存每次运行的看板数据
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache 创建看板缓存
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SummaryCache{client: client, ttl: ttl}
}

// GetDashboardKey 根据运行ID生成Redis键
func GetDashboardKey(runID string) string {
	return dashboardKeyPrefix + runID
}

// SetDashboard stores d under its run ID and marks it as the latest run.
func (c *SummaryCache) SetDashboard(ctx context.Context, d *insight.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, GetDashboardKey(d.RunID), data, c.ttl)
		pipe.Set(ctx, latestRunKey, d.RunID, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache dashboard %s: %w", d.RunID, err)
	}
	return nil
}

// ByRun returns the cached dashboard of a run, or ErrCacheMiss.
func (c *SummaryCache) ByRun(ctx context.Context, runID string) (*insight.Dashboard, error) {
	data, err := c.client.Get(ctx, GetDashboardKey(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get dashboard %s: %w", runID, err)
	}

	var d insight.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dashboard %s: %w", runID, err)
	}
	return &d, nil
}

// Latest returns the most recently cached dashboard, or ErrCacheMiss.
func (c *SummaryCache) Latest(ctx context.Context) (*insight.Dashboard, error) {
	runID, err := c.client.Get(ctx, latestRunKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get latest run id: %w", err)
	}
	return c.ByRun(ctx, runID)
}
