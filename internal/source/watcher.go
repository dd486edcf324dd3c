// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/the-hive/segmenter/internal/parser"
)

// DefaultDebounce is how long a file must be quiet before it is processed.
const DefaultDebounce = 2 * time.Second

// FileFunc receives a file that is ready to be segmented.
type FileFunc func(ctx context.Context, path string, decision Decision)

// Watcher watches directories recursively and calls a FileFunc for every
// supported file that appears or changes. Existing files are picked up on
// start.
type Watcher struct {
	paths     []string
	debouncer *Debouncer
	decisions *DecisionEngine
	onFile    FileFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	watched []string
}

// NewWatcher creates a watcher over paths. delay <= 0 selects DefaultDebounce.
func NewWatcher(paths []string, delay time.Duration, onFile FileFunc) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	w := &Watcher{
		paths:     paths,
		decisions: NewDecisionEngine(),
		onFile:    onFile,
	}
	w.debouncer = NewDebouncer(delay, w.handle)
	return w
}

// Start begins watching. It returns once the directories are registered;
// events are handled in the background until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = fw
	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, p := range w.paths {
		abs, err := w.addTree(p)
		if err != nil {
			log.Printf("Watcher: failed to watch path %s: %v", p, err)
			continue
		}
		w.watched = append(w.watched, abs)
	}
	if len(w.watched) == 0 {
		w.cancel()
		fw.Close()
		return fmt.Errorf("no watchable paths in %v", w.paths)
	}

	w.wg.Add(1)
	go w.processEvents()

	for _, dir := range w.watched {
		w.scanExisting(dir)
	}
	return nil
}

// Watched returns the absolute roots being watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

// Stop stops watching and waits for the event loop to exit. Pending
// debounced files are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	fw := w.watcher
	w.mu.Unlock()

	w.debouncer.Stop()
	if fw != nil {
		if err := fw.Close(); err != nil {
			log.Printf("Watcher: error closing watcher: %v", err)
		}
	}
	w.wg.Wait()
}

func (w *Watcher) addTree(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}

	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				log.Printf("Watcher: failed to watch %s: %v", path, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk directory: %w", err)
	}

	log.Printf("Watcher: watching directory (recursive): %s", abs)
	return abs, nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						log.Printf("Watcher: failed to watch new directory %s: %v", event.Name, err)
					}
					w.scanExisting(event.Name)
					continue
				}
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.decisions.Forget(event.Name)
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if accept(event.Name) {
					w.debouncer.Trigger(event.Name)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher: error: %v", err)
		}
	}
}

func (w *Watcher) scanExisting(dir string) {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && accept(path) {
			w.debouncer.Trigger(path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Watcher: error scanning directory %s: %v", dir, err)
	}
}

func (w *Watcher) handle(path string) {
	if w.ctx.Err() != nil {
		return
	}

	decision, err := w.decisions.Decide(path)
	if err != nil {
		log.Printf("Watcher: failed to decide on file %s: %v", path, err)
		return
	}
	if !decision.ShouldProcess {
		log.Printf("Watcher: skipping file %s: %s", path, decision.Reason)
		return
	}

	log.Printf("Watcher: file=%s ingest=%s hash=%s", path, decision.IngestType, decision.Hash[:12])
	w.onFile(w.ctx, path, decision)
}

func accept(path string) bool {
	return !parser.IsTemporaryFile(path) && parser.IsSupportedFile(path)
}
