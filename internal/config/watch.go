package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"jordanella.com/slash-go/internal/logging"
)

var log = logging.NewLogger("Config")

// Watch reloads path whenever it is written, created or renamed into place
// and passes the new configuration to onChange. A reload that fails to parse
// is logged and skipped, so onChange only ever sees valid configurations.
// Watching stops when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := LoadFromINI(abs)
				if err != nil {
					log.WarnWithContext("settings reload failed", map[string]interface{}{
						"path":  abs,
						"error": err.Error(),
					})
					continue
				}
				log.InfoWithContext("settings reloaded", map[string]interface{}{"path": abs})
				if onChange != nil {
					onChange(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("settings watcher error", err)
			}
		}
	}()

	return nil
}
