package schedule

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bcgov/wildsync/config"
)

// Watch blocks until ctx is cancelled, re-applying the schedule whenever the
// config file is rewritten. Editors and config management tools replace
// files rather than writing in place, so the parent directory is watched.
func (s *Scheduler) Watch(ctx context.Context, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}
	s.logger.Info("Watching config for schedule changes", "path", absPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.reload(absPath)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Config watcher error", "error", err)
		}
	}
}

// reload re-reads the config file and applies its schedule entries. The
// previous schedule stays active when the new file is invalid.
func (s *Scheduler) reload(path string) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		s.logger.Error("Config reload failed, keeping current schedule", "error", err)
		return
	}
	if err := s.Apply(cfg.Schedule.Entries); err != nil {
		s.logger.Error("Schedule reload rejected, keeping current schedule", "error", err)
		return
	}
	s.logger.Info("Schedule reloaded", "entries", s.EntryCount())
}
