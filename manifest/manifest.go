// Package manifest handles stencil.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/stencil/pkg/bytecode"
	"github.com/chazu/stencil/vm"
)

// FileName is the name of the project configuration file.
const FileName = "stencil.toml"

// DefaultStackLimit applies when [vm] does not set stack-limit.
const DefaultStackLimit = 4096

var log = commonlog.GetLogger("stencil.manifest")

// Manifest represents a stencil.toml project configuration.
type Manifest struct {
	Project Project           `toml:"project"`
	VM      VMConfig          `toml:"vm"`
	Log     LogConfig         `toml:"log"`
	Helpers map[string]string `toml:"helpers"`

	// Dir is the directory containing the stencil.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMConfig configures the machine programs run on.
type VMConfig struct {
	StackLimit int  `toml:"stack-limit"` // 0 = unlimited
	Trace      bool `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"` // empty = stderr
}

// Load parses a stencil.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Entry == "" {
		m.Project.Entry = "main.stencil.toml"
	}
	if !md.IsDefined("vm", "stack-limit") {
		m.VM.StackLimit = DefaultStackLimit
	}
	if m.VM.StackLimit < 0 {
		return nil, fmt.Errorf("%s: vm.stack-limit must not be negative, got %d", path, m.VM.StackLimit)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warningf("%s: ignoring unknown keys %v", path, undecoded)
	}

	log.Debugf("loaded %s", path)
	return &m, nil
}

// FindAndLoad walks up from startDir to find a stencil.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the manifest used when no stencil.toml exists.
func Default(dir string) *Manifest {
	return &Manifest{
		Project: Project{Entry: "main.stencil.toml"},
		VM:      VMConfig{StackLimit: DefaultStackLimit},
		Dir:     dir,
	}
}

// EntryPath returns the absolute path of the entry program image.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// LogPath returns the log file path for commonlog.Configure, or nil for
// stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}

// VMOptions returns the VM options the [vm] table asks for.
func (m *Manifest) VMOptions() []vm.Option {
	return []vm.Option{
		vm.WithStackLimit(m.VM.StackLimit),
		vm.WithTrace(m.VM.Trace),
	}
}

// Registry returns base extended with the [helpers] table. Each entry
// makes a new name for a helper base already has:
//
//	[helpers]
//	shout = "upper"
func (m *Manifest) Registry(base *bytecode.Registry) (*bytecode.Registry, error) {
	names := make([]string, 0, len(m.Helpers))
	for name := range m.Helpers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		target := m.Helpers[name]
		h, ok := base.Lookup(target)
		if !ok {
			return nil, fmt.Errorf("helpers.%s: %w %q", name, bytecode.ErrUnknownHelper, target)
		}
		base.Register(name, h)
	}
	return base, nil
}
