package repository

import (
	"context"
	"errors"
	"fmt"

	"PlaylistInsight/model"

	"gorm.io/gorm"
)

// ErrRunNotFound is returned when no run matches.
var ErrRunNotFound = errors.New("pipeline run not found")

const batchSize = 500

// RunRepository 流水线结果数据访问接口
type RunRepository interface {
	// SaveRun 在一个事务内写入运行记录及其清洗后的数据
	SaveRun(ctx context.Context, run *model.PipelineRun, tracks []model.Track, playlists []model.Playlist) error
	GetRun(ctx context.Context, id string) (*model.PipelineRun, error)
	LatestRun(ctx context.Context) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.PipelineRun, error)
	TracksByRun(ctx context.Context, runID string) ([]model.Track, error)
	PlaylistsByRun(ctx context.Context, runID string) ([]model.Playlist, error)
}

// gormRunRepository GORM 实现
type gormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository 创建 GORM 运行记录仓库
func NewGormRunRepository(db *gorm.DB) RunRepository {
	return &gormRunRepository{db: db}
}

func (r *gormRunRepository) SaveRun(ctx context.Context, run *model.PipelineRun, tracks []model.Track, playlists []model.Playlist) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		if len(tracks) > 0 {
			rows := make([]model.TrackRow, len(tracks))
			for i, t := range tracks {
				rows[i] = model.NewTrackRow(run.ID, t)
			}
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("create tracks: %w", err)
			}
		}

		if len(playlists) > 0 {
			rows := make([]model.PlaylistRow, len(playlists))
			for i, p := range playlists {
				rows[i] = model.NewPlaylistRow(run.ID, p)
			}
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("create playlists: %w", err)
			}
		}
		return nil
	})
}

func (r *gormRunRepository) GetRun(ctx context.Context, id string) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *gormRunRepository) LatestRun(ctx context.Context) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns 按时间倒序分页，不加载看板数据
func (r *gormRunRepository) ListRuns(ctx context.Context, limit, offset int) ([]*model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*model.PipelineRun
	err := r.db.WithContext(ctx).
		Omit("dashboard").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}

func (r *gormRunRepository) TracksByRun(ctx context.Context, runID string) ([]model.Track, error) {
	var rows []model.TrackRow
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("track_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Track, len(rows))
	for i, row := range rows {
		out[i] = row.Track()
	}
	return out, nil
}

func (r *gormRunRepository) PlaylistsByRun(ctx context.Context, runID string) ([]model.Playlist, error) {
	var rows []model.PlaylistRow
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("playlist_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Playlist, len(rows))
	for i, row := range rows {
		out[i] = row.Playlist()
	}
	return out, nil
}
