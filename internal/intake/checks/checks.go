// Package checks provides the shared compliance check definitions table,
// loaded from a JSON configuration file and watched for changes.
//
// The table is the single source for check base names and their human labels,
// consumed by both the intake pipeline and the review surface.
package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Definition describes one compliance check.
type Definition struct {
	// Key is the check base name, as derived from photo field names.
	Key string `json:"key"`
	// Label is the human readable question shown by clients.
	Label string `json:"label"`
}

// Conf represents the configuration file structure.
type Conf struct {
	Checks []Definition `json:"checks"`
}

// Manager loads and watches the check definitions file.
type Manager struct {
	config     Conf
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}

// New creates a new check definitions manager with the specified path.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the check definitions from the configured file and updates the
// internal state.
func (cm *Manager) Load() error {
	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening checks file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding checks JSON: %w", err)
	}

	cm.lock.Lock()
	cm.config = newConfig
	cm.lock.Unlock()

	cm.log.Info("Check definitions loaded", "count", len(newConfig.Checks))
	return nil
}

// Watch starts watching the check definitions file for changes.
//
// It returns two channels: one for changes which result in a successful load
// and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching check definitions directory", "dir", configDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the definitions
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial check definitions", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Check definitions watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Check definitions file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading check definitions", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// Definitions returns the current check definitions.
func (cm *Manager) Definitions() []Definition {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	return cm.config.Checks
}

// Label returns the human label for a check base name, falling back to the
// key itself for unknown checks.
func (cm *Manager) Label(key string) string {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	for _, d := range cm.config.Checks {
		if d.Key == key {
			return d.Label
		}
	}
	return key
}
