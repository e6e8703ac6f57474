package server

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PlaylistInsight/cache"
	"PlaylistInsight/config"
	"PlaylistInsight/core/insight"
	"PlaylistInsight/db"
	"PlaylistInsight/model"
	"PlaylistInsight/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRepo(t *testing.T) repository.RunRepository {
	t.Helper()
	gdb, err := db.Open(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("db.Migrate() error = %v", err)
	}
	return repository.NewGormRunRepository(gdb)
}

func saveRun(t *testing.T, repo repository.RunRepository, id string, at time.Time) {
	t.Helper()
	data, _ := json.Marshal(insight.Dashboard{RunID: id, Source: "db"})
	run := &model.PipelineRun{ID: id, Dashboard: model.JSONBlob(data), CreatedAt: at}
	if err := repo.SaveRun(context.Background(), run, nil, nil); err != nil {
		t.Fatalf("SaveRun(%s) error = %v", id, err)
	}
}

func TestPublishedSource(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := cache.NewSummaryCache(client, time.Minute)
	repo := newRepo(t)

	src := NewDashboardSource(c, repo, "")
	if _, err := src.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty stores error = %v, want ErrNotFound", err)
	}

	now := time.Now().UTC()
	saveRun(t, repo, "old", now.Add(-time.Hour))
	saveRun(t, repo, "new", now)

	d, err := src.Latest(ctx)
	if err != nil || d.RunID != "new" || d.Source != "db" {
		t.Fatalf("Latest() = %+v, %v", d, err)
	}
	// 数据库命中后回填缓存
	if cached, err := c.Latest(ctx); err != nil || cached.RunID != "new" {
		t.Errorf("cache after Latest() = %+v, %v", cached, err)
	}

	if d, err := src.ByRun(ctx, "old"); err != nil || d.RunID != "old" {
		t.Errorf("ByRun(old) = %+v, %v", d, err)
	}
	if cached, _ := c.Latest(ctx); cached == nil || cached.RunID != "new" {
		t.Errorf("ByRun(old) changed the cached latest run to %+v", cached)
	}
	if _, err := src.ByRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByRun(missing) error = %v, want ErrNotFound", err)
	}

	runs, err := src.Runs(ctx, 10, 0)
	if err != nil || len(runs) != 2 || runs[0].ID != "new" {
		t.Errorf("Runs() = %v, %v", runs, err)
	}
}

func TestPublishedSourceFromFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := NewDashboardSource(nil, nil, dir)

	if _, err := src.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty dir error = %v, want ErrNotFound", err)
	}

	for _, name := range []string{"dashboard_20240101_000000.json", "dashboard_20250101_000000.json"} {
		data, _ := json.Marshal(insight.Dashboard{RunID: name})
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	d, err := src.Latest(ctx)
	if err != nil || d.RunID != "dashboard_20250101_000000.json" {
		t.Errorf("Latest() = %+v, %v", d, err)
	}

	runs, err := src.Runs(ctx, 10, 0)
	if err != nil || len(runs) != 0 {
		t.Errorf("Runs() without a database = %v, %v", runs, err)
	}
	if _, err := src.ByRun(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByRun(x) without a database error = %v", err)
	}
	// Latest 返回的运行ID必须能按ID查到
	if d, err := src.ByRun(ctx, "dashboard_20240101_000000.json"); err != nil || d.RunID != "dashboard_20240101_000000.json" {
		t.Errorf("ByRun() from files = %+v, %v", d, err)
	}
}

func TestLatestPrefersNewerPersistedRun(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := cache.NewSummaryCache(client, time.Minute)
	repo := newRepo(t)
	src := NewDashboardSource(c, repo, "")

	now := time.Now().UTC()
	if err := c.SetDashboard(ctx, &insight.Dashboard{RunID: "cached", GeneratedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	saveRun(t, repo, "older", now.Add(-2*time.Hour))
	if d, err := src.Latest(ctx); err != nil || d.RunID != "cached" {
		t.Fatalf("Latest() = %+v, %v, want cached", d, err)
	}

	saveRun(t, repo, "persisted", now)
	if d, err := src.Latest(ctx); err != nil || d.RunID != "persisted" {
		t.Fatalf("Latest() = %+v, %v, want persisted", d, err)
	}
	if d, _ := c.Latest(ctx); d == nil || d.RunID != "persisted" {
		t.Errorf("cached latest = %+v, want persisted", d)
	}
}

func TestPublishedSourceRows(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := NewDashboardSource(nil, repo, "")

	run := &model.PipelineRun{ID: "run-1", Dashboard: model.JSONBlob(`{"runId":"run-1"}`)}
	tracks := []model.Track{
		{ID: "t2", Name: model.Some("Two"), Artist: model.Some("B")},
		{ID: "t1", Name: model.Some("One"), Artist: model.Some("A")},
	}
	playlists := []model.Playlist{{ID: "p1", Name: model.Some("Mix")}}
	if err := repo.SaveRun(ctx, run, tracks, playlists); err != nil {
		t.Fatal(err)
	}
	saveRun(t, repo, "empty", time.Now().UTC())

	got, err := src.Tracks(ctx, "run-1")
	if err != nil || len(got) != 2 || got[0].ID != "t1" {
		t.Errorf("Tracks(run-1) = %+v, %v", got, err)
	}
	pls, err := src.Playlists(ctx, "run-1")
	if err != nil || len(pls) != 1 || pls[0].Name.Or("") != "Mix" {
		t.Errorf("Playlists(run-1) = %+v, %v", pls, err)
	}

	if got, err := src.Tracks(ctx, "empty"); err != nil || len(got) != 0 {
		t.Errorf("Tracks(empty) = %+v, %v, want no rows", got, err)
	}
	if _, err := src.Tracks(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Tracks(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := NewDashboardSource(nil, nil, t.TempDir()).Playlists(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Playlists() without a database error = %v, want ErrNotFound", err)
	}
}
