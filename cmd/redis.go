package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PlaylistInsight/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		// 连接Redis
		if err := cache.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.CheckRedis(ctx, cache.RedisClient); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		// 顺带显示缓存中的最新运行
		latest, err := cache.NewSummaryCache(cache.RedisClient, cfg.CacheTTL).Latest(ctx)
		switch {
		case err == nil:
			fmt.Printf("缓存中的最新运行: %s (%s)\n", latest.RunID, latest.GeneratedAt.Format(time.RFC3339))
		case errors.Is(err, cache.ErrCacheMiss):
			fmt.Println("缓存中暂无看板数据")
		default:
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
