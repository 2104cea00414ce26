package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultCooldown = 200 * time.Millisecond

// Watcher 基于 fsnotify 监听配置文件，变更后在冷却时间内合并多次写入再重新加载。
// 监听的是所在目录，编辑器先写临时文件再 rename 的保存方式同样能被捕获。
type Watcher struct {
	Path     string
	Cooldown time.Duration
	OnError  func(error) // 可选，重新加载失败时回调，旧配置继续生效
}

// Start 阻塞直到 ctx 结束；onUpdate 收到校验通过的最新配置。
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = DefaultCooldown
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// 只处理写入、创建与改名覆盖
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.Cooldown)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		case <-timer.C:
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				w.reportError(err)
				continue
			}
			if onUpdate != nil {
				onUpdate(cfg)
			}
		}
	}
}

func (w Watcher) reportError(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
