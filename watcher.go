// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// externalEditGrace is how long after the store's own replace a change event
// on the config file is still attributed to the agent. Rename-based replaces
// produce events slightly after the write completes.
const externalEditGrace = 2 * time.Second

// Watcher observes the configuration file for modifications not made through
// the agent, for operator visibility. The agent itself never reacts to such
// edits (the file on disk is always authoritative for Get); they are logged
// and counted only.
type Watcher struct {
	fsw     *fsnotify.Watcher
	store   *Store
	logger  Logger
	metrics *Metrics
	done    chan struct{}
}

// WatchStore starts watching the store's configuration file for out-of-band
// edits. The directory rather than the file itself is watched so that
// rename-based replaces and re-creations keep being observed.
//
// Close the returned Watcher to stop.
func WatchStore(store *Store, logger Logger, metrics *Metrics) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(store.Path())); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}

	if logger == nil {
		logger = &NoOpLogger{}
	}

	w := &Watcher{
		fsw:     fsw,
		store:   store,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
	go w.run()

	return w, nil
}

// Close stops the watcher
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	ctx := context.Background()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.store.Path() {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if time.Since(w.store.LastReplace()) < externalEditGrace {
				// The agent's own replace
				continue
			}
			w.logger.Warn(ctx, "configuration file modified outside the agent",
				"path", w.store.Path(),
				"op", event.Op.String())
			if w.metrics != nil {
				w.metrics.ExternalEdits.Inc()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error(ctx, "configuration file watcher error",
				"error", err.Error())
		}
	}
}
