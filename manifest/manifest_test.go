package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/stencil/pkg/bytecode"
	"github.com/chazu/stencil/vm"
	"github.com/chazu/stencil/vm/reference"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
entry = "programs/main.stencil.toml"

[vm]
stack-limit = 128
trace = true

[log]
verbosity = 2
file = "stencil.log"

[helpers]
shout = "upper"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Entry != "programs/main.stencil.toml" {
		t.Errorf("project entry = %q, want programs/main.stencil.toml", m.Project.Entry)
	}
	if m.VM.StackLimit != 128 {
		t.Errorf("stack-limit = %d, want 128", m.VM.StackLimit)
	}
	if !m.VM.Trace {
		t.Error("trace = false, want true")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Helpers["shout"] != "upper" {
		t.Errorf("helpers = %v, want shout=upper", m.Helpers)
	}
	if got := m.LogPath(); got == nil || *got != filepath.Join(m.Dir, "stencil.log") {
		t.Errorf("LogPath = %v, want %s", got, filepath.Join(m.Dir, "stencil.log"))
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "programs", "main.stencil.toml"); got != want {
		t.Errorf("EntryPath = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Entry != "main.stencil.toml" {
		t.Errorf("default entry = %q, want main.stencil.toml", m.Project.Entry)
	}
	if m.VM.StackLimit != DefaultStackLimit {
		t.Errorf("default stack-limit = %d, want %d", m.VM.StackLimit, DefaultStackLimit)
	}
	if m.LogPath() != nil {
		t.Errorf("LogPath = %v, want nil", *m.LogPath())
	}
}

func TestLoadManifestUnlimitedStack(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[vm]
stack-limit = 0
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.VM.StackLimit != 0 {
		t.Errorf("stack-limit = %d, want 0 (explicitly unlimited)", m.VM.StackLimit)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[vm\n"},
		{"type", "[vm]\nstack-limit = \"big\"\n"},
		{"negative limit", "[vm]\nstack-limit = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want os.ErrNotExist", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no stencil.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.EntryPath() != "/app/main.stencil.toml" {
		t.Errorf("EntryPath = %q, want /app/main.stencil.toml", m.EntryPath())
	}
	if m.VM.StackLimit != DefaultStackLimit {
		t.Errorf("stack-limit = %d, want %d", m.VM.StackLimit, DefaultStackLimit)
	}
}

func TestVMOptions(t *testing.T) {
	m := Default("/app")
	m.VM.StackLimit = 1

	machine := vm.New(m.VMOptions()...)
	machine.Stack().Push(vm.Null)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, vm.ErrStackOverflow) {
			t.Errorf("recovered %v, want stack overflow", r)
		}
	}()
	machine.Stack().Push(vm.Null)
}

func TestRegistryAliases(t *testing.T) {
	m := &Manifest{Helpers: map[string]string{"shout": "upper"}}
	reg, err := m.Registry(bytecode.NewRegistry())
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}

	h, ok := reg.Lookup("shout")
	if !ok {
		t.Fatal("shout not registered")
	}
	got := h(nil, vm.NewArguments([]reference.Reference{reference.Const("hi")}, nil, nil))
	if got.Value() != "HI" {
		t.Errorf("shout(hi) = %v, want HI", got.Value())
	}
}

func TestRegistryUnknownTarget(t *testing.T) {
	m := &Manifest{Helpers: map[string]string{"shout": "yell"}}
	_, err := m.Registry(bytecode.NewRegistry())
	if !errors.Is(err, bytecode.ErrUnknownHelper) {
		t.Errorf("Registry error = %v, want ErrUnknownHelper", err)
	}
}
