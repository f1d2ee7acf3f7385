// Package watcher converts videos dropped into a directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZacxDev/video-compressor/internal/processor"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const queueSize = 100

// Converter runs one conversion
type Converter interface {
	Convert(ctx context.Context, in processor.Input) types.ConversionResult
}

// Options configures a Watcher
type Options struct {
	Dir         string
	OutputDir   string
	Suffix      string
	SettleDelay time.Duration

	// OnResult, when set, receives every finished conversion
	OnResult func(types.ConversionResult)
}

// Watcher queues new video files once their size stops changing and converts
// them one at a time.
type Watcher struct {
	opts      Options
	converter Converter
	logger    hclog.Logger
	ready     chan struct{}
}

type pendingFile struct {
	seen time.Time
	size int64
}

// New creates a watcher for opts.Dir
func New(opts Options, converter Converter, logger hclog.Logger) *Watcher {
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Dir
	}
	return &Watcher{
		opts:      opts,
		converter: converter,
		logger:    logger.Named("watcher"),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Accepts reports whether a file event should queue path for conversion.
// Outputs carrying the suffix are skipped so the watcher never converts its
// own results.
func (w *Watcher) Accepts(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || !processor.IsVideoFile(base) {
		return false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return w.opts.Suffix == "" || !strings.HasSuffix(stem, w.opts.Suffix)
}

// Run watches until ctx is cancelled. Files already queued when ctx ends are
// dropped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.opts.Dir)
	}

	queue := make(chan string, queueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processQueue(ctx, queue)
	}()
	defer wg.Wait()
	defer close(queue)

	tick := w.opts.SettleDelay / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := make(map[string]pendingFile)

	w.logger.Info("watching directory", "dir", w.opts.Dir, "output", w.opts.OutputDir)
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.Accepts(ev) {
				w.logger.Trace("file event", "op", ev.Op.String(), "path", ev.Name)
				pending[ev.Name] = pendingFile{seen: time.Now(), size: -1}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-ticker.C:
			for _, path := range w.settled(pending) {
				select {
				case queue <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// settled removes and returns the pending files that have been quiet for the
// settle delay and whose size did not change since the last check.
func (w *Watcher) settled(pending map[string]pendingFile) []string {
	var ready []string
	now := time.Now()
	for path, p := range pending {
		if now.Sub(p.seen) < w.opts.SettleDelay {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			delete(pending, path)
			continue
		}
		if info.Size() != p.size {
			pending[path] = pendingFile{seen: now, size: info.Size()}
			continue
		}
		delete(pending, path)
		ready = append(ready, path)
	}
	return ready
}

func (w *Watcher) processQueue(ctx context.Context, queue <-chan string) {
	for path := range queue {
		if ctx.Err() != nil {
			continue
		}
		w.logger.Info("converting dropped file", "input", path)
		result := w.converter.Convert(ctx, processor.Input{InputPath: path, OutputDir: w.opts.OutputDir})
		if result.Success {
			w.logger.Info("converted", "input", path, "output", result.OutputPath)
		} else {
			w.logger.Error("conversion failed", "input", path, "error", result.Error)
		}
		if w.opts.OnResult != nil {
			w.opts.OnResult(result)
		}
	}
}
