// Package watch wraps the platform change-notification mechanism behind a
// small interface so the invalidation engine stays portable across event
// backends.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Handle releases one subscription. Close is idempotent.
type Handle interface {
	Close() error
}

// Watcher delivers change notifications for subscribed paths.
type Watcher interface {
	// Watch subscribes onChange to changes of path. Directory
	// subscriptions fire for changes of direct children.
	Watch(path string, onChange func(path string)) (Handle, error)
	Close() error
}

// Notifier is the fsnotify-backed Watcher. One OS watch is kept per path no
// matter how many subscriptions share it.
type Notifier struct {
	mu     sync.Mutex
	fw     *fsnotify.Watcher
	subs   map[string]map[int64]func(string)
	next   int64
	closed bool
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger) (*Notifier, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	n := &Notifier{
		fw:     fw,
		subs:   make(map[string]map[int64]func(string)),
		logger: logger,
	}
	go n.dispatch()
	return n, nil
}

func (n *Notifier) Watch(path string, onChange func(path string)) (Handle, error) {
	path = filepath.Clean(path)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, fmt.Errorf("watcher is closed")
	}
	if _, ok := n.subs[path]; !ok {
		if err := n.fw.Add(path); err != nil {
			return nil, fmt.Errorf("subscribe to %s: %w", path, err)
		}
		n.subs[path] = make(map[int64]func(string))
	}

	n.next++
	id := n.next
	n.subs[path][id] = onChange

	return &handle{n: n, path: path, id: id}, nil
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.subs = make(map[string]map[int64]func(string))
	n.mu.Unlock()

	return n.fw.Close()
}

func (n *Notifier) dispatch() {
	for {
		select {
		case ev, ok := <-n.fw.Events:
			if !ok {
				return
			}
			n.notify(ev.Name)
		case err, ok := <-n.fw.Errors:
			if !ok {
				return
			}
			n.logger.Warn("watch backend error", "err", err)
		}
	}
}

// notify fans an event out to exact-path subscribers and to subscribers of
// the parent directory.
func (n *Notifier) notify(name string) {
	name = filepath.Clean(name)

	n.mu.Lock()
	var callbacks []func(string)
	for _, cb := range n.subs[name] {
		callbacks = append(callbacks, cb)
	}
	for _, cb := range n.subs[filepath.Dir(name)] {
		callbacks = append(callbacks, cb)
	}
	n.mu.Unlock()

	for _, cb := range callbacks {
		cb(name)
	}
}

func (n *Notifier) release(path string, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	set, ok := n.subs[path]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(n.subs, path)
		if err := n.fw.Remove(path); err != nil {
			n.logger.Debug("remove os watch", "path", path, "err", err)
		}
	}
}

type handle struct {
	n    *Notifier
	path string
	id   int64
	once sync.Once
}

func (h *handle) Close() error {
	h.once.Do(func() { h.n.release(h.path, h.id) })
	return nil
}
