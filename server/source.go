package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"PlaylistInsight/cache"
	"PlaylistInsight/core/ingest"
	"PlaylistInsight/core/insight"
	"PlaylistInsight/logger"
	"PlaylistInsight/model"
	"PlaylistInsight/repository"
)

// ErrNotFound is returned when no published run matches a request.
var ErrNotFound = errors.New("no published run")

// DashboardSource 提供已发布运行的看板数据
type DashboardSource interface {
	Latest(ctx context.Context) (*insight.Dashboard, error)
	ByRun(ctx context.Context, runID string) (*insight.Dashboard, error)
	Runs(ctx context.Context, limit, offset int) ([]*model.PipelineRun, error)
	// Tracks 和 Playlists 返回持久化运行的清洗结果，只有数据库可以提供
	Tracks(ctx context.Context, runID string) ([]model.Track, error)
	Playlists(ctx context.Context, runID string) ([]model.Playlist, error)
}

// publishedSource looks a dashboard up in the Redis cache, then the
// database, then the newest dashboard file in the output directory. Any of
// the three may be absent.
type publishedSource struct {
	cache     *cache.SummaryCache
	repo      repository.RunRepository
	outputDir string
}

// NewDashboardSource 创建按缓存、数据库、本地文件顺序查找的数据源
func NewDashboardSource(c *cache.SummaryCache, repo repository.RunRepository, outputDir string) DashboardSource {
	return &publishedSource{cache: c, repo: repo, outputDir: outputDir}
}

func (s *publishedSource) Latest(ctx context.Context) (*insight.Dashboard, error) {
	var cached *insight.Dashboard
	if s.cache != nil {
		d, err := s.cache.Latest(ctx)
		switch {
		case err == nil:
			cached = d
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn("读取看板缓存失败", logger.ErrorField(err))
		}
	}

	// 只用 --persist 发布的运行不会更新缓存，缓存中的最新运行需要与数据库比较
	if s.repo != nil {
		run, err := s.repo.LatestRun(ctx)
		switch {
		case err == nil:
			if cached != nil && (cached.RunID == run.ID || !run.CreatedAt.After(cached.GeneratedAt)) {
				return cached, nil
			}
			d, err := decodeRun(run)
			if err != nil {
				return nil, err
			}
			// SetDashboard also marks the run as latest, so only backfill here.
			if s.cache != nil {
				if err := s.cache.SetDashboard(ctx, d); err != nil {
					logger.Warn("回填看板缓存失败", logger.RunID(run.ID), logger.ErrorField(err))
				}
			}
			return d, nil
		case !errors.Is(err, repository.ErrRunNotFound):
			if cached != nil {
				logger.Warn("查询最新运行失败，使用缓存", logger.ErrorField(err))
				return cached, nil
			}
			return nil, err
		}
	}
	if cached != nil {
		return cached, nil
	}

	if s.outputDir != "" {
		path, err := ingest.LatestDashboardFile(s.outputDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return readDashboard(path)
	}
	return nil, ErrNotFound
}

func (s *publishedSource) ByRun(ctx context.Context, runID string) (*insight.Dashboard, error) {
	if s.cache != nil {
		d, err := s.cache.ByRun(ctx, runID)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("读取看板缓存失败", logger.RunID(runID), logger.ErrorField(err))
		}
	}
	if s.repo != nil {
		run, err := s.repo.GetRun(ctx, runID)
		if err == nil {
			return decodeRun(run)
		}
		if !errors.Is(err, repository.ErrRunNotFound) {
			return nil, err
		}
	}
	return s.fromFiles(runID)
}

// fromFiles scans the output directory, newest first, for runID.
func (s *publishedSource) fromFiles(runID string) (*insight.Dashboard, error) {
	if s.outputDir == "" {
		return nil, ErrNotFound
	}
	files, err := ingest.DashboardFiles(s.outputDir)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		d, err := readDashboard(path)
		if err != nil {
			logger.Warn("跳过无法解析的看板文件", logger.String("path", path), logger.ErrorField(err))
			continue
		}
		if d.RunID == runID {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *publishedSource) Runs(ctx context.Context, limit, offset int) ([]*model.PipelineRun, error) {
	if s.repo == nil {
		return []*model.PipelineRun{}, nil
	}
	return s.repo.ListRuns(ctx, limit, offset)
}

func (s *publishedSource) Tracks(ctx context.Context, runID string) ([]model.Track, error) {
	if err := s.persisted(ctx, runID); err != nil {
		return nil, err
	}
	return s.repo.TracksByRun(ctx, runID)
}

func (s *publishedSource) Playlists(ctx context.Context, runID string) ([]model.Playlist, error) {
	if err := s.persisted(ctx, runID); err != nil {
		return nil, err
	}
	return s.repo.PlaylistsByRun(ctx, runID)
}

// persisted tells an unknown run apart from a run with no rows.
func (s *publishedSource) persisted(ctx context.Context, runID string) error {
	if s.repo == nil {
		return ErrNotFound
	}
	_, err := s.repo.GetRun(ctx, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		return ErrNotFound
	}
	return err
}

func decodeRun(run *model.PipelineRun) (*insight.Dashboard, error) {
	if len(run.Dashboard) == 0 {
		return nil, fmt.Errorf("run %s has no dashboard: %w", run.ID, ErrNotFound)
	}
	var d insight.Dashboard
	if err := json.Unmarshal(run.Dashboard, &d); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard of run %s: %w", run.ID, err)
	}
	return &d, nil
}

func readDashboard(path string) (*insight.Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d insight.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &d, nil
}
