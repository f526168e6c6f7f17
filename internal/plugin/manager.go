package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ManifestFile is the manifest every plugin directory carries.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when no plugin has the requested name.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrActionNotSupported is returned when a plugin does not declare an action.
	ErrActionNotSupported = errors.New("action not supported by plugin")
	// ErrInvalidManifest marks a plugin directory that was skipped.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
)

// Manager is the catalog of plugins installed under one directory.
// Bindings name a plugin and one of its actions; Resolve checks both.
type Manager struct {
	dir    string
	mu     sync.RWMutex
	byName map[string]*Plugin
}

// NewManager creates an empty catalog for dir. Call Discover to fill it.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, byName: map[string]*Plugin{}}
}

// Discover replaces the catalog with the plugins under the directory.
// Subdirectories without a manifest are ignored. Broken manifests and
// duplicate names are skipped and reported together in the returned
// error while every valid plugin is still loaded. A missing directory
// leaves the catalog empty.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		m.replace(map[string]*Plugin{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read plugin dir: %w", err)
	}

	found := make(map[string]*Plugin, len(entries))
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := loadPlugin(filepath.Join(m.dir, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %s: name %q already used by %s",
				ErrInvalidManifest, p.Path, p.Manifest.Name, prev.Path))
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.replace(found)
	return errors.Join(errs...)
}

func (m *Manager) replace(plugins map[string]*Plugin) {
	m.mu.Lock()
	m.byName = plugins
	m.mu.Unlock()
}

func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dir, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, dir, err)
	}
	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// List returns the catalog sorted by plugin name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.byName))
	for _, p := range m.byName {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// Resolve returns the plugin a binding points at. It fails with
// ErrPluginNotFound or ErrActionNotSupported.
func (m *Manager) Resolve(name, action string) (*Plugin, error) {
	m.mu.RLock()
	p, ok := m.byName[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if !p.Manifest.Supports(action) {
		return nil, fmt.Errorf("%w: %s/%s", ErrActionNotSupported, name, action)
	}
	return p, nil
}
