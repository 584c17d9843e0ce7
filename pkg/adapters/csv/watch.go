package csv

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable is returned by Watch when no table is a local file.
var ErrNotWatchable = errors.New("no local table to watch")

// DebounceWindow coalesces the burst of events a single save produces.
var DebounceWindow = 200 * time.Millisecond

// Watch signals whenever a local table changes. The parent directories are
// watched rather than the files, so editors that save by rename are seen
// too. Remote tables are ignored.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	targets := make(map[string]struct{})
	for _, loc := range []Location{s.series, s.population} {
		if f, ok := loc.(File); ok {
			abs, err := filepath.Abs(string(f))
			if err != nil {
				return nil, err
			}
			targets[abs] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return nil, ErrNotWatchable
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]struct{})
	for t := range targets {
		dirs[filepath.Dir(t)] = struct{}{}
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	out := make(chan struct{}, 1)
	go s.watchLoop(ctx, watcher, targets, out)
	return out, nil
}

func (s *Source) watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]struct{}, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if _, hit := targets[filepath.Clean(ev.Name)]; !hit {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DebounceWindow)
			} else {
				timer.Reset(DebounceWindow)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Table watcher error", "err", err)
		case <-fire:
			fire = nil
			s.logger.Debug("Table changed on disk")
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
