package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PlaylistInsight/logger"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 文件事件静默多久后触发处理
const DefaultDebounce = 2 * time.Second

// Watch calls fn for every raw CSV created or rewritten in dir, once events
// for it have been quiet for DefaultDebounce. It returns when ctx is done.
func Watch(ctx context.Context, dir string, fn func(ctx context.Context, path string) error) error {
	return watch(ctx, dir, DefaultDebounce, fn)
}

// isInput reports whether an event names a raw input file. Files this
// service writes itself are ignored so that outputs never retrigger a run.
func isInput(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	return strings.EqualFold(filepath.Ext(base), ".csv") &&
		!strings.HasPrefix(base, "clean_tracks_") &&
		!strings.HasPrefix(base, "clean_playlists_")
}

func watch(ctx context.Context, dir string, debounce time.Duration, fn func(ctx context.Context, path string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", dir, err)
	}
	logger.Info("开始监听输入目录", logger.String("dir", dir))

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isInput(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听出错", logger.ErrorField(err))
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				if err := fn(ctx, p); err != nil {
					logger.Error("处理输入文件失败", logger.String("path", p), logger.ErrorField(err))
				}
			}
		}
	}
}
