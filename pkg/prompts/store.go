package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/spyre/pkg/logger"
)

// Store holds the current templates and can reload them when the prompt
// file changes. Readers always see a complete, validated set.
type Store struct {
	path    string
	current atomic.Pointer[Templates]
	logger  *slog.Logger
}

// NewStore loads path and returns a Store serving its templates.
func NewStore(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt path: %w", err)
	}

	s := &Store{
		path:   abs,
		logger: log.With("component", "prompts"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Templates returns the current template set.
func (s *Store) Templates() *Templates {
	return s.current.Load()
}

// Path returns the absolute path of the prompt file.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the prompt file. On error the previous templates stay in
// place.
func (s *Store) Reload() error {
	t, err := Load(s.path)
	if err != nil {
		return err
	}

	s.current.Store(t)
	return nil
}

// Watch reloads the templates whenever the prompt file is written or
// replaced, until ctx is done. The parent directory is watched so editors
// that save through a rename are picked up.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	s.logger.Info("watching prompt file", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			if err := s.Reload(); err != nil {
				s.logger.Warn("prompt reload failed, keeping previous templates", "error", err)
				continue
			}
			s.logger.Info("prompt templates reloaded", "path", s.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("prompt watcher error", "error", err)
		}
	}
}
