package bytecode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/stencil/vm"
)

func loadTestImage(t *testing.T, name string) *Image {
	t.Helper()
	img, err := LoadFile("testdata/" + name)
	require.NoError(t, err)
	return img
}

func TestDecodeTOML(t *testing.T) {
	img := loadTestImage(t, "greet.stencil.toml")

	assert.Equal(t, 1, img.Version)
	assert.Equal(t, "greet", img.Name)
	assert.Equal(t, []string{"name"}, img.Strings)
	assert.Len(t, img.Code, 12)
	assert.Equal(t, "PushArgs 1 -1", img.Code[6])

	require.Len(t, img.Constants, 3)
	self, ok := img.Constants[0].Value.(map[string]any)
	require.True(t, ok, "got %T", img.Constants[0].Value)
	assert.Equal(t, "ada", self["name"])
	assert.Equal(t, "Hello, ", img.Constants[1].Value)
	assert.Equal(t, "upper", img.Constants[2].Helper)
}

func TestDecodeTOMLTables(t *testing.T) {
	img := loadTestImage(t, "blocks.stencil.toml")
	require.Len(t, img.Constants, 3)
	require.NotNil(t, img.Constants[0].Table)
	assert.Empty(t, img.Constants[0].Table.Parameters)
	assert.Equal(t, []int{0}, img.Constants[1].Table.Parameters)
	require.NotNil(t, img.Constants[2].Block)
	assert.Equal(t, 7, img.Constants[2].Block.Handle)
}

func TestDecodeTOMLSyntaxError(t *testing.T) {
	_, err := DecodeTOML(strings.NewReader("version = = 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/nope.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestParseInstr(t *testing.T) {
	tests := []struct {
		line     string
		op       vm.Opcode
		operands []int
		err      error
	}{
		{line: "Nop", op: vm.OpNop, operands: []int{}},
		{line: "  RootScope   3 ", op: vm.OpRootScope, operands: []int{3}},
		{line: "PushArgs 2 -1", op: vm.OpPushArgs, operands: []int{2, -1}},
		{line: "", err: ErrUnknownOpcode},
		{line: "Frobnicate 1", err: ErrUnknownOpcode},
		{line: "RootScope", err: ErrOperandCount},
		{line: "Dup 1", err: ErrOperandCount},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			op, operands, err := ParseInstr(tt.line)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.operands, operands)
		})
	}
}

func TestParseInstrBadNumber(t *testing.T) {
	_, _, err := ParseInstr("GetVariable x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `bad operand "x"`)

	_, _, err = ParseInstr("GetVariable 99999999999")
	require.Error(t, err)
}

func TestAssembleInvertsLink(t *testing.T) {
	img := loadTestImage(t, "greet.stencil.toml")
	prog, err := Link(img, NewRegistry())
	require.NoError(t, err)

	back, err := Assemble(prog, map[vm.Handle]string{2: "upper"})
	require.NoError(t, err)
	assert.Equal(t, img.Code, back.Code)
	assert.Equal(t, img.Strings, back.Strings)
	assert.Equal(t, img.Constants, back.Constants)
}

func TestAssembleUnnamedHelper(t *testing.T) {
	img := loadTestImage(t, "greet.stencil.toml")
	prog, err := Link(img, NewRegistry())
	require.NoError(t, err)

	_, err = Assemble(prog, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constant 2")
}
