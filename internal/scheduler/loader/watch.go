package loader

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
	debounceDelay      = 250 * time.Millisecond
)

// Watch watches path for changes and reloads it into the scheduler on
// every write, debounced to tolerate partial writes. When the watcher
// reports an error or closes its event or error channel, Watch recreates
// it with exponential backoff; a watcher that silently stops delivering
// events without either is not detected. It returns when ctx is done.
func (l *Loader) Watch(ctx context.Context, path string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warn("descriptor reload: read failed", slog.String("path", path), slog.Any("err", err))
				return
			}
			if err := l.LoadFile(path, data); err != nil {
				log.Warn("descriptor reload rejected", slog.String("path", path), slog.Any("err", err))
				return
			}
			log.Info("descriptor reloaded", slog.String("path", path))
		})
	}

	for {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			if !sleepBackoff(ctx, &backoff, rng) {
				return ctx.Err()
			}
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			if !sleepBackoff(ctx, &backoff, rng) {
				return ctx.Err()
			}
			continue
		}

		backoff = restartBackoffBase
		if !l.runWatchSession(ctx, watcher, file, reload, log) {
			watcher.Close()
			return ctx.Err()
		}
		watcher.Close()
		if !sleepBackoff(ctx, &backoff, rng) {
			return ctx.Err()
		}
	}
}

// runWatchSession drains events from one watcher instance until it
// reports an error, closes one of its channels, or ctx is cancelled.
// Returns false when the caller should stop entirely (ctx done).
func (l *Loader) runWatchSession(ctx context.Context, watcher *fsnotify.Watcher, file string, reload func(), log *slog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-watcher.Events:
			if !ok {
				return true // watcher closed itself; caller restarts
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return true
			}
			log.Warn("descriptor watch error", slog.Any("err", err))
			return true
		}
	}
}

func sleepBackoff(ctx context.Context, backoff *time.Duration, rng *rand.Rand) bool {
	jitter := time.Duration(rng.Int63n(int64(*backoff) / 2))
	wait := *backoff + jitter
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	*backoff *= 2
	if *backoff > restartBackoffMax {
		*backoff = restartBackoffMax
	}
	return true
}
