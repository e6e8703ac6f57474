package cmd

import (
	"PlaylistInsight/cache"
	"PlaylistInsight/db"
	"PlaylistInsight/logger"
	"PlaylistInsight/repository"
	"PlaylistInsight/server"

	"github.com/spf13/cobra"
)

var (
	serverPort    string
	serverNoDB    bool
	serverNoCache bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动看板数据服务",
	Long:  `启动HTTP服务，提供最近一次或指定运行的看板数据。依次从 Redis、数据库、输出目录读取。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			summaries *cache.SummaryCache
			repo      repository.RunRepository
		)

		// 数据库和 Redis 都是可选的，连接失败时退化为读取输出目录
		if !serverNoDB {
			if err := db.ConnectGormDB(cfg); err != nil {
				logger.Warn("数据库不可用，跳过", logger.ErrorField(err))
			} else {
				defer db.CloseGormDB()
				repo = repository.NewGormRunRepository(db.GormDB)
			}
		}
		if !serverNoCache {
			if err := cache.ConnectRedis(cfg); err != nil {
				logger.Warn("Redis不可用，跳过", logger.ErrorField(err))
			} else {
				defer cache.CloseRedis()
				summaries = cache.NewSummaryCache(cache.RedisClient, cfg.CacheTTL)
			}
		}

		port := serverPort
		if port == "" {
			port = cfg.ServerPort
		}
		return server.Start(port, server.NewDashboardSource(summaries, repo, cfg.OutputDir))
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverPort, "port", "", "监听端口 (默认 $SERVER_PORT)")
	serverCmd.Flags().BoolVar(&serverNoDB, "no-db", false, "不连接数据库")
	serverCmd.Flags().BoolVar(&serverNoCache, "no-cache", false, "不连接 Redis")
	rootCmd.AddCommand(serverCmd)
}
