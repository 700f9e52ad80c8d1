package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"avos-hq/avos/pkg/config"
)

// Watcher watches a configuration directory and re-applies its layer
// documents when they change. Changes are debounced so an editor save or a
// multi-file deploy triggers a single sync.
type Watcher struct {
	dir      string
	service  *Service
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// DefaultDebounceInterval is the quiet period after the last filesystem
// event before a re-sync is triggered.
const DefaultDebounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher over dir that applies changed configuration
// through svc.
func NewWatcher(dir string, svc *Service) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		service:  svc,
		logger:   slog.Default().With("component", "sync.watcher"),
		debounce: DefaultDebounceInterval,
		watcher:  fsw,
	}, nil
}

// Start begins watching. It returns immediately; events are handled on a
// background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.loop(ctx)
	w.logger.Info("watching config directory", "dir", w.dir)
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// Restart the quiet-period timer on every relevant event.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "error", err)
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.resync(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) resync(ctx context.Context) {
	configs, err := config.LoadLayerConfigsFromDir(w.dir)
	if err != nil {
		w.logger.Error("failed to reload config directory", "dir", w.dir, "error", err)
		return
	}
	result, err := w.service.Apply(ctx, configs)
	if err != nil {
		w.logger.Error("sync aborted", "error", err)
		return
	}
	w.logger.Info("config directory re-synced",
		"dir", w.dir,
		"applied", len(result.Applied),
		"rejected", len(result.Rejections))
	for _, rej := range result.Rejections {
		w.logger.Warn("layer rejected during re-sync", "layer_id", rej.LayerID, "error", rej.Err)
	}
}
