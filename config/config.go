// Package config holds the §6 tunables as a typed, functional-options
// constructed value, with an optional YAML file loader and fsnotify-based
// hot reload. Grounded on the teacher's engine.Config/Defaults() surface
// and packages/engine/config/runtime.go's RuntimeConfigManager/
// HotReloadSystem pair.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/zeit"
)

// Tunables is the exact §6 configuration surface: every field is a minutes
// value (mapped onto zeit.Minuten for the dwell times) except UpdateInterval,
// which §6 specifies in seconds.
type Tunables struct {
	MindestaufenthaltPlanhalt        zeit.Minuten `yaml:"mindestaufenthalt_planhalt"`
	MindestaufenthaltLokwechsel      zeit.Minuten `yaml:"mindestaufenthalt_lokwechsel"`
	MindestaufenthaltLokumlauf       zeit.Minuten `yaml:"mindestaufenthalt_lokumlauf"`
	MindestaufenthaltRichtungswechsel zeit.Minuten `yaml:"mindestaufenthalt_richtungswechsel"`
	MindestaufenthaltErsatz          zeit.Minuten `yaml:"mindestaufenthalt_ersatz"`
	MindestaufenthaltKupplung        zeit.Minuten `yaml:"mindestaufenthalt_kupplung"`
	MindestaufenthaltFluegelung      zeit.Minuten `yaml:"mindestaufenthalt_fluegelung"`
	WartezeitAnkunftAbwarten         zeit.Minuten `yaml:"wartezeit_ankunft_abwarten"`
	WartezeitAbfahrtAbwarten         zeit.Minuten `yaml:"wartezeit_abfahrt_abwarten"`
	UpdateIntervalSeconds            int          `yaml:"update_interval"`
}

// Defaults returns the §6 tunables at their documented defaults.
func Defaults() Tunables {
	return Tunables{
		MindestaufenthaltPlanhalt:        0,
		MindestaufenthaltLokwechsel:      5,
		MindestaufenthaltLokumlauf:       2,
		MindestaufenthaltRichtungswechsel: 2,
		MindestaufenthaltErsatz:          1,
		MindestaufenthaltKupplung:        1,
		MindestaufenthaltFluegelung:      1,
		WartezeitAnkunftAbwarten:         0,
		WartezeitAbfahrtAbwarten:         2,
		UpdateIntervalSeconds:            30,
	}
}

// Option customizes Tunables at construction time.
type Option func(*Tunables)

// New builds Tunables from Defaults() with opts applied in order.
func New(opts ...Option) Tunables {
	t := Defaults()
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// WithUpdateInterval overrides UpdateIntervalSeconds.
func WithUpdateInterval(seconds int) Option {
	return func(t *Tunables) { t.UpdateIntervalSeconds = seconds }
}

// WithWartezeiten overrides both dispatcher default-wait tunables.
func WithWartezeiten(ankunft, abfahrt zeit.Minuten) Option {
	return func(t *Tunables) {
		t.WartezeitAnkunftAbwarten = ankunft
		t.WartezeitAbfahrtAbwarten = abfahrt
	}
}

// BuildConfig projects the Mindestaufenthalt* tunables onto the event-graph
// builder's own config type, the one piece of §6 that ereignisgraph.Rebuild
// actually consumes directly.
func (t Tunables) BuildConfig() ereignisgraph.BuildConfig {
	return ereignisgraph.BuildConfig{
		MindestaufenthaltPlanhalt:         t.MindestaufenthaltPlanhalt,
		MindestaufenthaltLokwechsel:       t.MindestaufenthaltLokwechsel,
		MindestaufenthaltLokumlauf:        t.MindestaufenthaltLokumlauf,
		MindestaufenthaltRichtungswechsel: t.MindestaufenthaltRichtungswechsel,
		MindestaufenthaltErsatz:           t.MindestaufenthaltErsatz,
		MindestaufenthaltKupplung:         t.MindestaufenthaltKupplung,
		MindestaufenthaltFluegelung:       t.MindestaufenthaltFluegelung,
	}
}

// RefreshInterval converts UpdateIntervalSeconds to a time.Duration for
// orchestrator.Config.
func (t Tunables) RefreshInterval() time.Duration {
	if t.UpdateIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.UpdateIntervalSeconds) * time.Second
}

// LoadYAML reads Tunables from a YAML file, starting from Defaults() so a
// file that only overrides a few keys still produces a complete value.
func LoadYAML(path string) (Tunables, error) {
	t := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return t, nil
}

// SaveYAML writes t to path, creating its parent directory if needed.
func SaveYAML(path string, t Tunables) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Watcher reloads Tunables from a YAML file whenever it changes on disk,
// delivering the new value on Changes(). Grounded on the teacher's
// HotReloadSystem: watch the containing directory (more reliable than
// watching the file handle directly, which editors often replace rather
// than write in place), filter to the one path that matters, and close
// both channels when the watch goroutine exits.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan Tunables
	errs    chan error
	done    chan struct{}
}

// NewWatcher starts watching path's directory for changes to path itself.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		changes: make(chan Tunables, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers a freshly reloaded Tunables value each time path's
// contents change and parse successfully.
func (w *Watcher) Changes() <-chan Tunables { return w.changes }

// Errors delivers read/parse failures; a failed reload leaves the last good
// value in effect.
func (w *Watcher) Errors() <-chan error { return w.errs }

func (w *Watcher) run() {
	defer close(w.changes)
	defer close(w.errs)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := LoadYAML(w.path)
			if err != nil {
				w.errs <- err
				continue
			}
			w.changes <- t
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.errs <- err
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
