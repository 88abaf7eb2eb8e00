package catalog

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ultrona/mantlog/pkg/cerr"
)

// reloadDebounce lets editors finish write+rename sequences before reloading.
const reloadDebounce = 200 * time.Millisecond

// Catalog serves the current Options and reloads them when the backing file
// changes.
type Catalog struct {
	path string

	mu       sync.RWMutex
	options  *Options
	lastHash [sha256.Size]byte
}

// New loads the catalog from path, falling back to the built-in lists when
// path is empty or missing.
func New(path string) (*Catalog, error) {
	opts, err := LoadOptionsOrDefault(path)
	if err != nil {
		return nil, err
	}
	c := &Catalog{path: path, options: opts}
	if path != "" {
		if h, err := hashFile(path); err == nil {
			c.lastHash = h
		}
	}
	return c, nil
}

// NewStatic returns a catalog that never reloads.
func NewStatic(opts *Options) *Catalog {
	return &Catalog{options: opts.clone()}
}

// Options returns a copy of the current options.
func (c *Catalog) Options() *Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options.clone()
}

// Validate checks that task and operator belong to the current options.
func (c *Catalog) Validate(task, operator string) error {
	c.mu.RLock()
	opts := c.options
	c.mu.RUnlock()

	var e *cerr.Error
	fail := func(msg, rule string) {
		if e == nil {
			e = cerr.NewError(cerr.InvalidArgument, "invalid maintenance entry", nil)
		}
		e.AddDetailMessageWithCode(msg, rule)
	}
	if !slices.Contains(opts.Tasks, task) {
		fail(fmt.Sprintf("unknown maintenance task %q", task), "task.in")
	}
	if !slices.Contains(opts.Operators, operator) {
		fail(fmt.Sprintf("unknown operator %q", operator), "operator.in")
	}
	if e != nil {
		return e
	}
	return nil
}

// Reload re-reads the options file. A file that fails to parse leaves the
// current options in place. It reports whether the options changed.
func (c *Catalog) Reload() (bool, error) {
	if c.path == "" {
		return false, nil
	}
	h, err := hashFile(c.path)
	if err != nil {
		return false, err
	}
	c.mu.RLock()
	unchanged := h == c.lastHash
	c.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	opts, err := LoadOptions(c.path)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	c.options = opts
	c.lastHash = h
	c.mu.Unlock()
	return true, nil
}

// Watch reloads the catalog whenever its file is written, until ctx is done.
// It returns immediately for catalogs without a backing file.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and config management replace the file by rename.
	dir := filepath.Dir(c.path)
	name := filepath.Base(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	slog.Info("watching options file", "path", c.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, c.reloadAndLog)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("fsnotify error", "error", err)
		}
	}
}

func (c *Catalog) reloadAndLog() {
	changed, err := c.Reload()
	if err != nil {
		slog.Warn("failed to reload options, keeping previous", "path", c.path, "error", err)
		return
	}
	if changed {
		opts := c.Options()
		slog.Info("reloaded options", "path", c.path, "tasks", len(opts.Tasks), "operators", len(opts.Operators))
	}
}
