package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"PlaylistInsight/core/insight"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSummaryCache(client, time.Minute), mr, client
}

func TestSummaryCache(t *testing.T) {
	ctx := context.Background()
	c, mr, _ := newTestCache(t)

	if _, err := c.Latest(ctx); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Latest() on empty cache error = %v, want ErrCacheMiss", err)
	}

	for _, id := range []string{"run-1", "run-2"} {
		d := &insight.Dashboard{RunID: id, Source: "test", Overview: insight.Overview{Tracks: len(id)}}
		if err := c.SetDashboard(ctx, d); err != nil {
			t.Fatalf("SetDashboard(%s) error = %v", id, err)
		}
	}

	latest, err := c.Latest(ctx)
	if err != nil || latest.RunID != "run-2" {
		t.Fatalf("Latest() = %v, %v, want run-2", latest, err)
	}
	first, err := c.ByRun(ctx, "run-1")
	if err != nil || first.Source != "test" {
		t.Errorf("ByRun(run-1) = %v, %v", first, err)
	}
	if _, err := c.ByRun(ctx, "run-9"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("ByRun(run-9) error = %v, want ErrCacheMiss", err)
	}

	if ttl := mr.TTL(GetDashboardKey("run-1")); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := c.Latest(ctx); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Latest() after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestCheckRedis(t *testing.T) {
	_, _, client := newTestCache(t)
	if err := CheckRedis(context.Background(), client); err != nil {
		t.Errorf("CheckRedis() error = %v", err)
	}
	if err := CheckRedis(context.Background(), nil); err == nil {
		t.Error("CheckRedis(nil) error = nil")
	}
}
