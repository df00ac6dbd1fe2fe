package bytecode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/stencil/vm"
	"github.com/chazu/stencil/vm/reference"
)

func runImage(t *testing.T, img *Image) vm.Result {
	t.Helper()
	prog, err := Link(img, NewRegistry())
	require.NoError(t, err)
	res, err := vm.New().Execute(context.Background(), prog)
	require.NoError(t, err)
	return res
}

func TestLinkAndRunGreet(t *testing.T) {
	res := runImage(t, loadTestImage(t, "greet.stencil.toml"))

	require.Len(t, res.Stack, 1)
	assert.Equal(t, "Hello, ADA", res.Top().Reference().Value())
	assert.Equal(t, "ADA", res.Value.Reference().Value())
}

func TestLinkAndRunBlocks(t *testing.T) {
	res := runImage(t, loadTestImage(t, "blocks.stencil.toml"))

	require.Len(t, res.Stack, 3)
	assert.Same(t, reference.True, res.Stack[0].Reference(), "HasBlock")
	assert.Same(t, reference.False, res.Stack[1].Reference(), "HasBlockParams on empty parameters")
	assert.Same(t, reference.True, res.Stack[2].Reference(), "HasBlockParams on [0]")
}

func TestLinkConstants(t *testing.T) {
	prog, err := Link(sampleImage(), NewRegistry())
	require.NoError(t, err)

	pool, ok := prog.Constants.(*vm.ConstantPool)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "title"}, pool.Strings())

	handles := pool.Handles()
	require.Len(t, handles, 8)
	assert.IsType(t, vm.Helper(nil), handles[2])
	assert.Equal(t, []string{"sep"}, handles[3])
	assert.Equal(t, &vm.BlockSymbolTable{Parameters: []int{0, 1}}, handles[4])
	assert.Equal(t, &vm.ProgramSymbolTable{Symbols: []string{"this"}}, handles[5])
	assert.Equal(t, &vm.PrecompiledBlock{Handle: 3, Table: &vm.BlockSymbolTable{Parameters: []int{1}}}, handles[6])
	assert.Nil(t, handles[7])
}

func TestLinkErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(img *Image)
		err    error
		msg    string
	}{
		{
			name:   "unknown helper",
			mutate: func(img *Image) { img.Constants[2].Helper = "shout" },
			err:    ErrUnknownHelper,
			msg:    `constants.2: unknown helper "shout"`,
		},
		{
			name:   "unknown opcode",
			mutate: func(img *Image) { img.Code = append(img.Code, "Frobnicate") },
			err:    ErrUnknownOpcode,
			msg:    "code.2",
		},
		{
			name:   "operand count",
			mutate: func(img *Image) { img.Code = append(img.Code, "Concat") },
			err:    ErrOperandCount,
		},
		{
			name:   "string out of range",
			mutate: func(img *Image) { img.Code = append(img.Code, "GetProperty 2") },
			err:    ErrBadOperand,
			msg:    "GetProperty string 2 not in [0, 2)",
		},
		{
			name:   "constant out of range",
			mutate: func(img *Image) { img.Code = append(img.Code, "Helper 8") },
			err:    ErrBadOperand,
		},
		{
			name:   "negative constant",
			mutate: func(img *Image) { img.Code = append(img.Code, "PrimitiveReference -1") },
			err:    ErrBadOperand,
		},
		{
			name:   "names out of range",
			mutate: func(img *Image) { img.Code = append(img.Code, "PushArgs 0 9") },
			err:    ErrBadOperand,
		},
		{
			name:   "table without parameters",
			mutate: func(img *Image) { img.Constants[4].Table.Parameters = nil },
			err:    ErrBadTable,
			msg:    "constants.4: bad symbol table",
		},
		{
			name:   "register",
			mutate: func(img *Image) { img.Code = append(img.Code, "Load 5") },
			err:    ErrBadOperand,
			msg:    "Load register 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := sampleImage()
			tt.mutate(img)
			_, err := Link(img, NewRegistry())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestLinkRejectsTableWithoutParameters(t *testing.T) {
	for _, table := range []string{"{}", `{ symbols = ["x"] }`} {
		t.Run(table, func(t *testing.T) {
			img, err := DecodeTOML(strings.NewReader(`
version = 1
code = ["PushSymbolTable 0", "PushScope", "PushBlock 1", "HasBlockParams"]

[[constants]]
table = ` + table + "
"))
			require.NoError(t, err)
			_, err = Link(img, NewRegistry())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadTable), "got %v", err)
		})
	}
}

func TestLinkEmptyParameters(t *testing.T) {
	img, err := DecodeTOML(strings.NewReader(`
version = 1
code = ["PushSymbolTable 0", "PushScope", "PushBlock 1", "HasBlockParams"]

[[constants]]
table = { parameters = [] }
`))
	require.NoError(t, err)
	require.NoError(t, Validate(img))
	res := runImage(t, img)
	assert.Same(t, reference.False, res.Top().Reference())
}

func TestLinkAllowsNoNames(t *testing.T) {
	img := sampleImage()
	img.Code = []string{"PushArgs 0 -1", "PushArgs 0 3"}
	_, err := Link(img, NewRegistry())
	assert.NoError(t, err)
}

func TestLinkRejectsDuplicateStrings(t *testing.T) {
	img := sampleImage()
	img.Strings = []string{"a", "b", "a"}
	_, err := Link(img, NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strings.2: duplicate of strings.0")
}

func TestLinkRejectsVersion(t *testing.T) {
	img := sampleImage()
	img.Version = 3
	_, err := Link(img, NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image version 3")
}

func TestLinkedContractErrorSurfaces(t *testing.T) {
	img := &Image{
		Version: FormatVersion,
		Code:    []string{"RootScope 0", "PushSelf"},
	}
	prog, err := Link(img, NewRegistry())
	require.NoError(t, err)

	_, err = vm.New().Execute(context.Background(), prog)
	require.Error(t, err)
	assert.True(t, vm.IsContractError(err))
	assert.Contains(t, err.Error(), "self is not bound")
}
