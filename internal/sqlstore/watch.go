package sqlstore

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The -wal file is created and removed over time, so watch the
	// directory rather than individual files.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if s.isDatabaseFile(event.Name) &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				s.scheduleCheck()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Debug("sqlstore: watcher error", zap.Error(err))
		}
	}
}

func (s *Store) isDatabaseFile(name string) bool {
	base := filepath.Base(s.path)
	switch filepath.Base(name) {
	case base, base + "-wal":
		return true
	default:
		return false
	}
}

func (s *Store) scheduleCheck() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.debounce, func() {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.checkExternal()
	})
}

func (s *Store) stopDebounce() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Store) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkExternal()
		}
	}
}

// checkExternal refreshes every subscribed collection when another
// connection has committed since the last check.
func (s *Store) checkExternal() {
	if s.isClosed() {
		return
	}
	version, err := s.readDataVersion(context.Background())
	if err != nil {
		s.logger.Debug("sqlstore: data_version check failed", zap.Error(err))
		return
	}

	s.refreshMu.Lock()
	changed := version != s.dataVersion
	s.dataVersion = version
	s.refreshMu.Unlock()

	if changed {
		s.logger.Debug("sqlstore: external change detected", zap.String("path", s.path))
		s.refreshAll()
	}
}

func (s *Store) readDataVersion(ctx context.Context) (int64, error) {
	var version int64
	err := s.conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version)
	return version, err
}
