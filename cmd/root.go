package cmd

import (
	"fmt"
	"os"

	"PlaylistInsight/config"
	"PlaylistInsight/logger"

	"github.com/spf13/cobra"
)

// cfg 在任意子命令执行前加载
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Playlist Insight cleans Spotify playlist data and serves its dashboard.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			Format:     logger.Format(cfg.LogFormat),
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
