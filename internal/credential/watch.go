package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the store whenever the credentials file changes on disk and
// then calls onChange with the new token ("" when removed or expired). It
// returns once the watch is installed; the watch ends with ctx.
func (s *Store) Watch(ctx context.Context, onChange func(token string)) error {
	if s.path == "" {
		return fmt.Errorf("cannot watch an in-memory credential store")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: the file is replaced by rename on every save.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.logger.Debug().Str("path", s.path).Msg("Watching credentials file")
	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func(string)) {
	defer func() { _ = watcher.Close() }()

	name := filepath.Base(s.path)
	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := s.Reload(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to reload credentials file")
				continue
			}
			token, err := s.Token(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Reloaded credential is unusable")
				token = ""
			}
			onChange(token)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("Credentials watcher error")
		}
	}
}
