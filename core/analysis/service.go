package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"PlaylistInsight/core/ingest"
	"PlaylistInsight/core/insight"
	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/logger"
	"PlaylistInsight/model"
	"PlaylistInsight/storage"

	"github.com/google/uuid"
)

// RunStore persists a published run.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.PipelineRun, tracks []model.Track, playlists []model.Playlist) error
}

// DashboardCache caches the dashboard of a published run.
type DashboardCache interface {
	SetDashboard(ctx context.Context, d *insight.Dashboard) error
}

// ArtifactStore uploads the local output files of a run.
type ArtifactStore interface {
	Upload(ctx context.Context, runID, file string) (storage.ObjectInfo, error)
}

// Service 执行一次完整的清洗与发布流程
type Service struct {
	Repo      RunStore
	Cache     DashboardCache
	Store     ArtifactStore
	OutputDir string
	Config    pipeline.Config
	Options   insight.Options
	// Workers > 0 enables per-playlist summaries with that many goroutines.
	Workers int
}

// Outcome is what Process produced for one input.
type Outcome struct {
	RunID     string
	Result    pipeline.Result
	Dashboard insight.Dashboard
	Outputs   ingest.Outputs
	Uploaded  []storage.ObjectInfo
}

// NewService returns a Service with the default pipeline and dashboard settings.
func NewService(outputDir string) *Service {
	return &Service{
		OutputDir: outputDir,
		Config:    pipeline.DefaultConfig(),
		Options:   insight.DefaultOptions(),
	}
}

// LoadInput reads the raw track CSV and, when playlistsPath is set, the raw
// playlist CSV.
func LoadInput(tracksPath, playlistsPath string, opts ingest.Options) (pipeline.Input, error) {
	in := pipeline.Input{Source: tracksPath}
	var err error
	if in.Tracks, err = ingest.ReadFile(tracksPath, opts); err != nil {
		return in, fmt.Errorf("读取曲目文件失败: %w", err)
	}
	if playlistsPath != "" {
		if in.Playlists, err = ingest.ReadFile(playlistsPath, opts); err != nil {
			return in, fmt.Errorf("读取歌单文件失败: %w", err)
		}
	}
	return in, nil
}

// Process cleans in, writes the local outputs and publishes the run to every
// configured sink. Sink failures do not stop the other sinks; they are joined
// into the returned error alongside a non-nil Outcome.
func (s *Service) Process(ctx context.Context, in pipeline.Input) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{RunID: uuid.NewString()}
	out.Result = pipeline.Run(in, s.Config)

	var summaries []pipeline.PlaylistSummary
	if s.Workers > 0 && len(out.Result.Playlists) > 0 {
		var err error
		summaries, err = pipeline.SummarizePlaylists(ctx, out.Result.Tracks, out.Result.Playlists,
			s.features(), s.Config.Stats, s.Workers)
		if err != nil {
			return nil, fmt.Errorf("汇总歌单特征失败: %w", err)
		}
	}

	out.Dashboard = insight.Build(out.RunID, in.Source, out.Result, s.Options)
	out.Dashboard.Playlists = summaries

	if err := s.writeOutputs(out); err != nil {
		return nil, err
	}

	err := s.publish(ctx, out)
	logger.Info("运行已发布",
		logger.RunID(out.RunID),
		logger.String("dashboard", out.Outputs.Dashboard),
		logger.Int("uploaded", len(out.Uploaded)),
		logger.Duration("elapsed", time.Since(start)))
	return out, err
}

func (s *Service) features() []string {
	if len(s.Config.Features) > 0 {
		return s.Config.Features
	}
	return pipeline.DefaultFeatures
}

func (s *Service) writeOutputs(out *Outcome) error {
	out.Outputs = ingest.OutputNames(s.OutputDir, out.Dashboard.GeneratedAt)
	res := out.Result

	if err := ingest.WriteFile(out.Outputs.Tracks, func(w io.Writer) error {
		return ingest.WriteTracks(w, res.Tracks)
	}); err != nil {
		return fmt.Errorf("写入清洗后曲目失败: %w", err)
	}
	if err := ingest.WriteFile(out.Outputs.Playlists, func(w io.Writer) error {
		return ingest.WritePlaylists(w, res.Playlists)
	}); err != nil {
		return fmt.Errorf("写入清洗后歌单失败: %w", err)
	}
	if err := ingest.WriteFile(out.Outputs.Dashboard, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Dashboard)
	}); err != nil {
		return fmt.Errorf("写入看板数据失败: %w", err)
	}
	return nil
}

// NewPipelineRun builds the persisted run record of an outcome.
func NewPipelineRun(out *Outcome) (*model.PipelineRun, error) {
	data, err := json.Marshal(out.Dashboard)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
	}
	q := out.Result.Quality
	return &model.PipelineRun{
		ID:               out.RunID,
		Source:           out.Dashboard.Source,
		RawTracks:        q.Tracks.Raw,
		CleanTracks:      q.Tracks.Clean,
		RawPlaylists:     q.Playlists.Raw,
		CleanPlaylists:   q.Playlists.Clean,
		DroppedTracks:    q.Tracks.Raw - q.Tracks.Clean,
		DroppedPlaylists: q.Playlists.Raw - q.Playlists.Clean,
		Dashboard:        model.JSONBlob(data),
		CreatedAt:        out.Dashboard.GeneratedAt,
	}, nil
}

func (s *Service) publish(ctx context.Context, out *Outcome) error {
	var errs []error

	if s.Repo != nil {
		run, err := NewPipelineRun(out)
		if err == nil {
			err = s.Repo.SaveRun(ctx, run, out.Result.Tracks, out.Result.Playlists)
		}
		if err != nil {
			logger.Error("保存运行记录失败", logger.RunID(out.RunID), logger.ErrorField(err))
			errs = append(errs, fmt.Errorf("persist run %s: %w", out.RunID, err))
		}
	}

	if s.Cache != nil {
		if err := s.Cache.SetDashboard(ctx, &out.Dashboard); err != nil {
			logger.Warn("缓存看板失败", logger.RunID(out.RunID), logger.ErrorField(err))
			errs = append(errs, fmt.Errorf("cache dashboard %s: %w", out.RunID, err))
		}
	}

	if s.Store != nil {
		for _, file := range []string{out.Outputs.Tracks, out.Outputs.Playlists, out.Outputs.Dashboard} {
			info, err := s.Store.Upload(ctx, out.RunID, file)
			if err != nil {
				logger.Error("上传产出文件失败", logger.String("file", file), logger.ErrorField(err))
				errs = append(errs, fmt.Errorf("upload %s: %w", file, err))
				continue
			}
			out.Uploaded = append(out.Uploaded, info)
		}
	}

	return errors.Join(errs...)
}
