package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"PlaylistInsight/core/ingest"
	"PlaylistInsight/core/insight"
	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/model"
	"PlaylistInsight/storage"
)

type fakeRepo struct {
	runs   []*model.PipelineRun
	tracks int
}

func (f *fakeRepo) SaveRun(_ context.Context, run *model.PipelineRun, tracks []model.Track, _ []model.Playlist) error {
	f.runs = append(f.runs, run)
	f.tracks += len(tracks)
	return nil
}

var errCacheDown = errors.New("cache down")

type failingCache struct{}

func (failingCache) SetDashboard(context.Context, *insight.Dashboard) error { return errCacheDown }

type fakeStore struct{ keys []string }

func (f *fakeStore) Upload(_ context.Context, runID, file string) (storage.ObjectInfo, error) {
	key := storage.ObjectKey(runID, file)
	f.keys = append(f.keys, key)
	return storage.ObjectInfo{Key: key}, nil
}

func sampleInput() pipeline.Input {
	return pipeline.Input{
		Source: "test",
		Tracks: []pipeline.RawRecord{
			{"id": "t1", "name": "One", "artist": "A", "popularity": "10", "energy": "0.2", "release_date": "1985-01-01", "playlist_ids": "p1"},
			{"id": "t2", "name": "Two", "artist": "B", "popularity": "20", "energy": "0.4", "release_date": "1999", "playlist_ids": "p1;p2"},
			{"id": "t2", "name": "Two", "artist": "B", "popularity": "20"},
			{"id": "t3", "artist": "C", "popularity": "30"},
		},
		Playlists: []pipeline.RawRecord{
			{"playlist_id": "p1", "playlist_name": "Mix"},
			{"playlist_id": "p2", "playlist_name": "Chill"},
		},
	}
}

func TestProcess(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeStore{}
	svc := NewService(t.TempDir())
	svc.Repo = repo
	svc.Cache = failingCache{}
	svc.Store = store
	svc.Workers = 2

	out, err := svc.Process(context.Background(), sampleInput())
	if !errors.Is(err, errCacheDown) {
		t.Fatalf("Process() error = %v, want cache error", err)
	}
	if out == nil {
		t.Fatal("Process() outcome = nil")
	}

	if len(out.Result.Tracks) != 2 {
		t.Errorf("clean tracks = %d, want 2", len(out.Result.Tracks))
	}
	if len(out.Dashboard.Playlists) != 2 {
		t.Errorf("playlist summaries = %d, want 2", len(out.Dashboard.Playlists))
	}

	if len(repo.runs) != 1 || repo.tracks != 2 {
		t.Fatalf("repo saved %d runs with %d tracks", len(repo.runs), repo.tracks)
	}
	run := repo.runs[0]
	if run.ID != out.RunID || run.RawTracks != 4 || run.DroppedTracks != 2 {
		t.Errorf("run = %+v", run)
	}

	if len(store.keys) != 3 || len(out.Uploaded) != 3 {
		t.Errorf("uploaded %v", store.keys)
	}

	for _, f := range []string{out.Outputs.Tracks, out.Outputs.Playlists} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("output %s: %v", f, err)
		}
	}
	data, err := os.ReadFile(out.Outputs.Dashboard)
	if err != nil {
		t.Fatalf("ReadFile(dashboard) error = %v", err)
	}
	var d insight.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("dashboard json: %v", err)
	}
	if d.RunID != out.RunID || d.Overview.Tracks != 2 {
		t.Errorf("dashboard = %s / %d tracks", d.RunID, d.Overview.Tracks)
	}
}

func TestProcessWithoutSinks(t *testing.T) {
	svc := NewService(t.TempDir())
	out, err := svc.Process(context.Background(), pipeline.Input{Source: "empty"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out.Result.Tracks) != 0 || out.Dashboard.Playlists != nil {
		t.Errorf("outcome = %+v", out.Dashboard)
	}
	tracks, err := ingest.ReadFile(out.Outputs.Tracks, ingest.Options{})
	if err != nil || len(tracks) != 0 {
		t.Errorf("ReadFile(empty tracks) = %v, %v", tracks, err)
	}
}

func TestLoadInput(t *testing.T) {
	dir := t.TempDir()
	tracks := filepath.Join(dir, "tracks.csv")
	playlists := filepath.Join(dir, "playlists.csv")
	os.WriteFile(tracks, []byte("id,name\nt1,One\nt2,Two\n"), 0644)
	os.WriteFile(playlists, []byte("playlist_id,playlist_name\np1,Mix\n"), 0644)

	in, err := LoadInput(tracks, playlists, ingest.Options{})
	if err != nil {
		t.Fatalf("LoadInput() error = %v", err)
	}
	if in.Source != tracks || len(in.Tracks) != 2 || len(in.Playlists) != 1 {
		t.Errorf("LoadInput() = %+v", in)
	}

	in, err = LoadInput(tracks, "", ingest.Options{})
	if err != nil || in.Playlists != nil {
		t.Errorf("LoadInput(no playlists) = %v, %v", in.Playlists, err)
	}

	if _, err := LoadInput(filepath.Join(dir, "missing.csv"), "", ingest.Options{}); err == nil {
		t.Error("LoadInput(missing) error = nil")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	got := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, dir, 20*time.Millisecond, func(_ context.Context, path string) error {
			mu.Lock()
			seen = append(seen, filepath.Base(path))
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	input := filepath.Join(dir, "tracks.csv")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-got:
			break loop
		case <-deadline:
			t.Fatal("watch never called fn")
		case <-tick.C:
			// 监听可能尚未就绪，重复写入直到收到回调
			os.WriteFile(filepath.Join(dir, "clean_tracks_x.csv"), []byte("id\n"), 0644)
			os.WriteFile(input, []byte("id\nt1\n"), 0644)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, name := range seen {
		if name != "tracks.csv" {
			t.Errorf("fn called for %s", name)
		}
	}
}
