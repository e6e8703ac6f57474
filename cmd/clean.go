package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"PlaylistInsight/cache"
	"PlaylistInsight/config"
	"PlaylistInsight/core/analysis"
	"PlaylistInsight/core/ingest"
	"PlaylistInsight/db"
	"PlaylistInsight/logger"
	"PlaylistInsight/repository"
	"PlaylistInsight/storage"

	"github.com/spf13/cobra"
)

var (
	cleanTracks    string
	cleanPlaylists string
	cleanPolicy    string
	cleanOut       string
	cleanWorkers   int
	cleanPersist   bool
	cleanUpload    bool
	cleanCache     bool
	cleanWatch     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "清洗原始曲目与歌单数据",
	Long: `读取采集到的曲目/歌单 CSV，执行规范化、去重、缺失值处理与特征汇总，
输出 clean_tracks_<ts>.csv、clean_playlists_<ts>.csv 和 dashboard_<ts>.json。
可选写入数据库、Redis 缓存和 MinIO。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, closeSinks, err := newService(ctx)
		if err != nil {
			return err
		}
		defer closeSinks()

		tracks := cleanTracks
		if tracks == "" {
			tracks = filepath.Join(cfg.DataDir, "tracks.csv")
		}
		run := func(ctx context.Context) error {
			in, err := analysis.LoadInput(tracks, cleanPlaylists, ingest.Options{})
			if err != nil {
				return err
			}
			out, err := svc.Process(ctx, in)
			if out != nil {
				printOutcome(out)
			}
			return err
		}

		if err := run(ctx); err != nil {
			if !cleanWatch {
				return err
			}
			logger.Error("清洗失败", logger.ErrorField(err))
		}
		if !cleanWatch {
			return nil
		}

		dir := filepath.Dir(tracks)
		fmt.Printf("监听 %s 中的输入文件变化，Ctrl+C 退出...\n", dir)
		return analysis.Watch(ctx, dir, func(ctx context.Context, path string) error {
			logger.Info("输入文件已更新", logger.String("path", path))
			return run(ctx)
		})
	},
}

// newService wires the configured sinks. The returned func releases them.
func newService(ctx context.Context) (*analysis.Service, func(), error) {
	policy := cleanPolicy
	if policy == "" {
		policy = cfg.PolicyFile
	}
	pcfg, err := config.LoadPipeline(policy)
	if err != nil {
		return nil, nil, err
	}

	out := cleanOut
	if out == "" {
		out = cfg.OutputDir
	}
	svc := analysis.NewService(out)
	svc.Config = pcfg
	svc.Workers = cleanWorkers

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("关闭连接失败", logger.ErrorField(err))
			}
		}
	}

	if cleanPersist {
		if err := db.ConnectGormDB(cfg); err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.CloseGormDB)
		svc.Repo = repository.NewGormRunRepository(db.GormDB)
	}
	if cleanCache {
		if err := cache.ConnectRedis(cfg); err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, cache.CloseRedis)
		svc.Cache = cache.NewSummaryCache(cache.RedisClient, cfg.CacheTTL)
	}
	if cleanUpload {
		store, err := storage.NewArtifactStore(cfg)
		if err == nil {
			err = store.EnsureBucket(ctx)
		}
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		svc.Store = store
	}
	return svc, closeAll, nil
}

func printOutcome(out *analysis.Outcome) {
	q := out.Result.Quality
	fmt.Printf("运行ID: %s\n", out.RunID)
	fmt.Printf("曲目: %d -> %d (重复 %d, 丢弃 %d)\n",
		q.Tracks.Raw, q.Tracks.Clean, q.Tracks.Dedup.Duplicates, q.Tracks.Resolve.Dropped)
	fmt.Printf("歌单: %d -> %d (重复 %d, 丢弃 %d)\n",
		q.Playlists.Raw, q.Playlists.Clean, q.Playlists.Dedup.Duplicates, q.Playlists.Resolve.Dropped)
	fmt.Printf("悬空歌单引用: %d, 无发行日期: %d\n", q.DanglingMemberships, q.Undated)
	fmt.Printf("输出:\n  %s\n  %s\n  %s\n", out.Outputs.Tracks, out.Outputs.Playlists, out.Outputs.Dashboard)
	for _, o := range out.Uploaded {
		fmt.Printf("已上传: %s (%d bytes)\n", o.Key, o.Size)
	}
}

func init() {
	cleanCmd.Flags().StringVar(&cleanTracks, "tracks", "", "原始曲目 CSV (默认 $DATA_DIR/tracks.csv)")
	cleanCmd.Flags().StringVar(&cleanPlaylists, "playlists", "", "原始歌单 CSV")
	cleanCmd.Flags().StringVar(&cleanPolicy, "policy", "", "YAML 策略文件 (默认 $POLICY_FILE)")
	cleanCmd.Flags().StringVar(&cleanOut, "out", "", "输出目录 (默认 $OUTPUT_DIR)")
	cleanCmd.Flags().IntVar(&cleanWorkers, "workers", 4, "歌单汇总并发数，0 表示不生成歌单汇总")
	cleanCmd.Flags().BoolVar(&cleanPersist, "persist", false, "写入数据库")
	cleanCmd.Flags().BoolVar(&cleanUpload, "upload", false, "上传产出文件到 MinIO")
	cleanCmd.Flags().BoolVar(&cleanCache, "cache", false, "缓存看板数据到 Redis")
	cleanCmd.Flags().BoolVar(&cleanWatch, "watch", false, "监听输入目录，文件变化时重新清洗")
	rootCmd.AddCommand(cleanCmd)
}
