package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"triage/pkg/domain/notification"
)

// ReloadInterval is the periodic re-read cadence. File change notifications
// reload sooner; the ticker is the fallback for filesystems where fsnotify
// misses events (e.g. some mounted volumes).
const ReloadInterval = 30 * time.Second

// Load parses the YAML rules file: a top-level list of Rule records. A
// missing file yields an empty rule set, not an error.
func Load(path string) ([]notification.Rule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules read %s: %w", path, err)
	}
	var rules []notification.Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("rules parse %s: %w", path, err)
	}
	return rules, nil
}

// Store holds the current rules snapshot and keeps it fresh. Snapshot
// replacement is atomic under the mutex; readers see old or new, never a mix.
type Store struct {
	path     string
	interval time.Duration
	log      *zap.Logger

	mu       sync.RWMutex
	snapshot []notification.Rule
	loadedAt time.Time
}

// NewStore loads the initial snapshot. An unreadable file at startup is not
// fatal; the store starts empty and retries on the reload cadence.
func NewStore(path string, log *zap.Logger) *Store {
	s := &Store{path: path, interval: ReloadInterval, log: log}
	if err := s.Reload(); err != nil {
		log.Warn("initial rules load failed, starting empty",
			zap.String("path", path), zap.Error(err))
	}
	return s
}

// Snapshot returns the current rule set. The returned slice must not be
// mutated by callers.
func (s *Store) Snapshot() []notification.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Reload re-reads the backing file and swaps the snapshot. On failure the
// prior snapshot remains in effect and the error is returned.
func (s *Store) Reload() error {
	rules, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = rules
	s.loadedAt = time.Now()
	s.mu.Unlock()
	s.log.Debug("rules snapshot loaded",
		zap.String("path", s.path), zap.Int("rules", len(rules)))
	return nil
}

// Run keeps the snapshot fresh until ctx is done: a 30s ticker plus fsnotify
// change events on the rules file's directory. Intended to run in its own
// goroutine from cmd wiring.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("rules watcher unavailable, falling back to ticker only", zap.Error(err))
	} else {
		defer watcher.Close()
		// Watch the directory: editors and configmap mounts replace the
		// file, which drops a watch on the file itself.
		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			s.log.Warn("rules watch failed, falling back to ticker only", zap.Error(err))
		} else {
			events = make(chan fsnotify.Event, 1)
			go forwardEvents(ctx, watcher, events)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-events:
		}
		if err := s.Reload(); err != nil {
			s.log.Warn("rules reload failed, keeping prior snapshot", zap.Error(err))
		}
	}
}

func forwardEvents(ctx context.Context, w *fsnotify.Watcher, out chan<- fsnotify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case out <- ev:
			default:
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}
