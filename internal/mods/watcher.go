package mods

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Store's installed-mod cache when the mod directory
// changes behind its back (mods copied in or deleted by hand). The store's
// own staging and download files are ignored.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	wg       sync.WaitGroup
	onChange func(name string)
}

// NewWatcher creates a Watcher for st's directory.
func NewWatcher(st *Store) (*Watcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(st.Dir()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", st.Dir(), err)
	}

	return &Watcher{
		store:  st,
		fsw:    fsw,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins processing filesystem events in the background.
func (w *Watcher) Start() error {
	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn("mods watcher error", "err", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.store.logger.Debug("mods directory changed", "entry", name, "op", event.Op.String())
	w.store.Invalidate()
	if w.onChange != nil {
		w.onChange(name)
	}
}

// Stop halts event processing and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	return w.fsw.Close()
}
