// watch.go implements live reload of the logging section when the YAML config
// file changes on disk. Only the log level and format are applied at runtime;
// everything else (ports, pools, store backend) requires a restart because it
// is consumed once during startup wiring.
package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and invokes onChange with the freshly
// loaded configuration whenever the file is written. Errors reloading are
// logged and the previous configuration stays in effect. The returned stop
// function closes the watcher.
//
// Editors often replace files via rename; watching the parent directory and
// filtering on the file name catches both in-place writes and atomic renames.
func Watch(path string, onChange func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, loadErr := Load(path)
				if loadErr != nil {
					slog.Warn("config reload failed, keeping previous configuration", "path", path, "error", loadErr)
					continue
				}
				slog.Info("config file changed, applying runtime-reloadable settings", "path", path)
				onChange(cfg)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", watchErr)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
