package cmd

import (
	"context"
	"fmt"
	"time"

	"PlaylistInsight/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioRun    string
	minioStats  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "查看已上传的产出文件",
	Long:  `列出MinIO存储桶中各次运行上传的文件，或显示统计信息。--run 只看某次运行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewArtifactStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		prefix := minioPrefix
		if minioRun != "" {
			prefix = "runs/" + minioRun + "/"
		}

		if minioStats {
			stats, err := store.Stats(ctx, prefix)
			if err != nil {
				return err
			}
			fmt.Printf("对象总数: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %.2f MB\n", float64(stats.TotalSize)/(1024*1024))
			if stats.TotalObjects > 0 {
				fmt.Printf("最后修改时间: %s\n", stats.LastModified.Format(time.RFC3339))
			}
			return nil
		}

		objects, err := store.List(ctx, prefix)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Printf("%-70s %10d  %s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
		}
		fmt.Printf("\n共 %d 个文件\n", len(objects))
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "runs/", "对象前缀")
	minioCmd.Flags().StringVar(&minioRun, "run", "", "运行ID")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示统计信息")
	rootCmd.AddCommand(minioCmd)
}
