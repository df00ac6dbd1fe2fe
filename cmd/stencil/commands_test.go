package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/stencil/manifest"
)

const greetImage = `
version = 1
strings = ["name"]
code = [
    "RootScope 0",
    "PrimitiveReference 0",
    "BindSelf",
    "PushSelf",
    "GetProperty 0",
    "PushArgs 1 -1",
    "Helper 1",
]

[[constants]]
value = { name = "ada" }

[[constants]]
helper = "shout"
`

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.stencil.toml"), []byte(greetImage), 0644))

	m := manifest.Default(dir)
	m.Helpers = map[string]string{"shout": "upper"}
	out := &bytes.Buffer{}
	return &cli{manifest: m, out: out}, out, dir
}

func TestRunEntry(t *testing.T) {
	c, out, _ := newTestCLI(t)
	require.NoError(t, c.dispatch("run", nil))
	assert.Equal(t, "ADA\n", out.String())
}

func TestRunPrintsStackTop(t *testing.T) {
	c, out, dir := newTestCLI(t)
	path := filepath.Join(dir, "top.stencil.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
version = 1
code = ["PrimitiveReference 0", "PrimitiveReference 1", "Concat 2"]

[[constants]]
value = "a"

[[constants]]
value = 1
`), 0644))

	require.NoError(t, c.dispatch("run", []string{path}))
	assert.Equal(t, "a1\n", out.String())
}

func TestRunContractError(t *testing.T) {
	c, _, dir := newTestCLI(t)
	path := filepath.Join(dir, "bad.stencil.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
version = 1
code = ["RootScope 0", "PushSelf"]
`), 0644))

	err := c.dispatch("run", []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract violation in PushSelf")
}

func TestCompileThenRun(t *testing.T) {
	c, out, dir := newTestCLI(t)
	c.output = filepath.Join(dir, "greet.stbc")

	require.NoError(t, c.dispatch("compile", []string{filepath.Join(dir, "main.stencil.toml")}))
	assert.Contains(t, out.String(), "wrote "+c.output)

	out.Reset()
	require.NoError(t, c.dispatch("run", []string{c.output}))
	assert.Equal(t, "ADA\n", out.String())
}

func TestDisasm(t *testing.T) {
	c, out, _ := newTestCLI(t)
	require.NoError(t, c.dispatch("disasm", nil))
	assert.Contains(t, out.String(), "; === main.stencil ===")
	assert.Contains(t, out.String(), "Helper 1")
}

func TestCheck(t *testing.T) {
	c, out, _ := newTestCLI(t)
	require.NoError(t, c.dispatch("check", nil))
	assert.Equal(t, "main.stencil: ok (7 instructions, 31 bytes)\n", out.String())
}

func TestCheckRejectsInvalidImage(t *testing.T) {
	c, _, dir := newTestCLI(t)
	path := filepath.Join(dir, "bad.stencil.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
version = 1
code = ["Frobnicate"]
`), 0644))

	err := c.dispatch("check", []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid image")
}

func TestUnknownHelperAlias(t *testing.T) {
	c, _, _ := newTestCLI(t)
	c.manifest.Helpers = nil
	err := c.dispatch("run", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown helper "shout"`)
}

func TestDispatchErrors(t *testing.T) {
	c, _, _ := newTestCLI(t)
	assert.Error(t, c.dispatch("frob", nil))
	assert.Error(t, c.dispatch("run", []string{"a", "b"}))
	assert.Error(t, c.dispatch("compile", nil))
}

func TestExampleProject(t *testing.T) {
	m, err := manifest.Load(filepath.Join("..", "..", "examples", "hello"))
	require.NoError(t, err)
	assert.Equal(t, 256, m.VM.StackLimit)

	out := &bytes.Buffer{}
	c := &cli{manifest: m, out: out}
	require.NoError(t, c.dispatch("run", nil))
	assert.Equal(t, "Dear Countess ADA (math, engines)\n", out.String())
}
