// Package watch runs the pipeline automatically when sales files
// land in a directory. The ledger keeps re-delivered or renamed
// copies of processed files from running twice.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/salesflow/salesflow/pkg/history"
	"github.com/salesflow/salesflow/pkg/util"
)

// DefaultPatterns are the base-name globs watched when none are
// configured.
var DefaultPatterns = []string{"*.csv", "*.csv.gz", "*.xlsx"}

// Options configures a Watcher.
type Options struct {
	// Dir is the directory to watch.
	Dir string

	// Patterns are base-name globs selecting sales files.
	Patterns []string

	// Debounce is the quiet period after the last write event before
	// a file is processed. Defaults to 500ms.
	Debounce time.Duration

	// Ledger records processed file fingerprints.
	Ledger history.Store

	// Process runs one file and returns the ledger entry to record.
	// The signature field is filled in by the watcher.
	Process func(ctx context.Context, path string) (history.Entry, error)

	Logger zerolog.Logger
}

// Watcher monitors one directory and triggers runs.
type Watcher struct {
	opts    Options
	watcher *fsnotify.Watcher

	// runMu serializes runs: one pipeline execution at a time.
	runMu sync.Mutex

	mu         sync.Mutex
	processing map[string]bool
}

// New validates the options and creates the fsnotify watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch: no directory configured")
	}
	if opts.Process == nil {
		return nil, fmt.Errorf("watch: no process callback configured")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("watch: no ledger configured")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}

	stat, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", opts.Dir)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	if err := fsWatcher.Add(opts.Dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch: watching %s: %w", opts.Dir, err)
	}

	return &Watcher{
		opts:       opts,
		watcher:    fsWatcher,
		processing: make(map[string]bool),
	}, nil
}

// matches reports whether a base name matches any configured pattern.
func (w *Watcher) matches(name string) bool {
	for _, pattern := range w.opts.Patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Run sweeps existing files, then blocks handling events until the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.opts.Logger
	log.Info().
		Str("dir", w.opts.Dir).
		Strs("patterns", w.opts.Patterns).
		Msg("watching for sales files")

	w.sweep(ctx)

	debounceTimers := make(map[string]*time.Timer)
	var timerMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(filepath.Base(event.Name)) {
				continue
			}

			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			// Debounce rapid writes so half-copied files settle.
			timerMu.Lock()
			if timer, exists := debounceTimers[path]; exists {
				timer.Stop()
			}
			debounceTimers[path] = time.AfterFunc(w.opts.Debounce, func() {
				w.handle(ctx, path)
			})
			timerMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// sweep processes files already present when the watcher starts.
// The ledger makes this cheap: processed files are skipped by
// fingerprint.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		w.opts.Logger.Warn().Err(err).Msg("initial directory scan failed")
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !w.matches(entry.Name()) {
			continue
		}
		w.handle(ctx, filepath.Join(w.opts.Dir, entry.Name()))
	}
}

// handle fingerprints one file, consults the ledger and runs the
// pipeline when the file is new. Runs execute one at a time.
func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	if w.processing[path] {
		w.mu.Unlock()
		return
	}
	w.processing[path] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.processing, path)
		w.mu.Unlock()
	}()

	log := w.opts.Logger.With().Str("file", path).Logger()

	stat, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Msg("file vanished before processing")
		return
	}
	if !stat.Mode().IsRegular() {
		return
	}

	signature, err := util.FileSHA256(path)
	if err != nil {
		log.Warn().Err(err).Msg("fingerprinting failed")
		return
	}

	if prior, err := w.opts.Ledger.Lookup(ctx, signature); err == nil {
		log.Debug().
			Str("run_id", prior.RunID).
			Msg("content already processed, skipping")
		return
	} else if !os.IsNotExist(err) {
		// A broken ledger must not stall ingestion; process anyway.
		log.Warn().Err(err).Msg("ledger lookup failed")
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	entry, err := w.opts.Process(ctx, path)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return
	}

	entry.Signature = signature
	if entry.Path == "" {
		entry.Path = path
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}
	if err := w.opts.Ledger.MarkProcessed(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("recording run in ledger failed")
	}

	log.Info().
		Str("run_id", entry.RunID).
		Int("accepted", entry.Accepted).
		Int("rejected", entry.Rejected).
		Msg("file processed")
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
