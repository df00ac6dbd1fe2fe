package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/stencil/vm"
)

// FormatVersion is the current image format version.
// Increment when making incompatible changes to the format.
const FormatVersion = 1

var (
	// ErrUnknownOpcode is returned for an assembly line naming no opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrOperandCount is returned when a line has the wrong number of
	// operands for its opcode.
	ErrOperandCount = errors.New("wrong operand count")
)

// Image is a program in portable form.
type Image struct {
	Version   int        `toml:"version" cbor:"version" json:"version"`
	Name      string     `toml:"name,omitempty" cbor:"name,omitempty" json:"name,omitempty"`
	Strings   []string   `toml:"strings,omitempty" cbor:"strings,omitempty" json:"strings,omitempty"`
	Constants []Constant `toml:"constants,omitempty" cbor:"constants,omitempty" json:"constants,omitempty"`
	Code      []string   `toml:"code" cbor:"code" json:"code"`
}

// Constant is one entry of the handle table. At most one field is set; an
// entry with none set resolves to absence.
type Constant struct {
	Value  any      `toml:"value,omitempty" cbor:"value,omitempty" json:"value,omitempty"`
	Helper string   `toml:"helper,omitempty" cbor:"helper,omitempty" json:"helper,omitempty"`
	Names  []string `toml:"names,omitempty" cbor:"names,omitempty" json:"names,omitempty"`
	Table  *Table   `toml:"table,omitempty" cbor:"table,omitempty" json:"table,omitempty"`
	Block  *Block   `toml:"block,omitempty" cbor:"block,omitempty" json:"block,omitempty"`
}

// Table describes a symbol table constant. Program tables carry symbol
// names; block tables carry parameter symbols. A block table must list its
// parameters, even when there are none, so Parameters is never omitted.
type Table struct {
	Parameters []int    `toml:"parameters" cbor:"parameters" json:"parameters"`
	Symbols    []string `toml:"symbols,omitempty" cbor:"symbols,omitempty" json:"symbols,omitempty"`
	Program    bool     `toml:"program,omitempty" cbor:"program,omitempty" json:"program,omitempty"`
}

// Block describes a precompiled block: its compiled handle and the
// parameter symbols of its table.
type Block struct {
	Handle     int   `toml:"handle" cbor:"handle" json:"handle"`
	Parameters []int `toml:"parameters,omitempty" cbor:"parameters,omitempty" json:"parameters,omitempty"`
}

func (c Constant) kinds() []string {
	var set []string
	if c.Value != nil {
		set = append(set, "value")
	}
	if c.Helper != "" {
		set = append(set, "helper")
	}
	if c.Names != nil {
		set = append(set, "names")
	}
	if c.Table != nil {
		set = append(set, "table")
	}
	if c.Block != nil {
		set = append(set, "block")
	}
	return set
}

// DecodeTOML reads a TOML program image.
func DecodeTOML(r io.Reader) (*Image, error) {
	var img Image
	if _, err := toml.NewDecoder(r).Decode(&img); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &img, nil
}

// LoadFile reads an image in either format from path.
func LoadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var img *Image
	if bytes.HasPrefix(data, Magic) {
		img, err = Unmarshal(data)
	} else {
		img, err = DecodeTOML(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ParseInstr parses one assembly line such as "PushArgs 1 -1".
func ParseInstr(line string) (vm.Opcode, []int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, fmt.Errorf("%w: empty line", ErrUnknownOpcode)
	}
	op, ok := vm.LookupOpcode(fields[0])
	if !ok {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, fields[0])
	}
	if len(fields)-1 != op.Operands() {
		return 0, nil, fmt.Errorf("%w: %s takes %d, got %d", ErrOperandCount, op, op.Operands(), len(fields)-1)
	}

	operands := make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: bad operand %q: %w", op, f, err)
		}
		operands = append(operands, int(n))
	}
	return op, operands, nil
}

// FormatInstr renders ins as an assembly line ParseInstr accepts.
func FormatInstr(ins vm.Instruction) string {
	return ins.String()
}

// Assemble builds an image from a linked program. It is the inverse of
// Link for programs whose constants are plain values, symbol tables, name
// lists and precompiled blocks. Helpers are recorded under the names
// given in helpers, keyed by handle.
func Assemble(prog *vm.Program, helpers map[vm.Handle]string) (*Image, error) {
	pool, ok := prog.Constants.(*vm.ConstantPool)
	if !ok && prog.Constants != nil {
		return nil, fmt.Errorf("assemble: unsupported constants %T", prog.Constants)
	}

	img := &Image{Version: FormatVersion}
	if pool != nil {
		img.Strings = append(img.Strings, pool.Strings()...)
		for i, v := range pool.Handles() {
			c, err := constantFor(v)
			if err != nil {
				name, isHelper := helpers[vm.Handle(i)]
				if !isHelper {
					return nil, fmt.Errorf("assemble: constant %d: %w", i, err)
				}
				c = Constant{Helper: name}
			}
			img.Constants = append(img.Constants, c)
		}
	}

	instrs, err := prog.Instructions()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	img.Code = make([]string, len(instrs))
	for i, ins := range instrs {
		img.Code[i] = FormatInstr(ins)
	}
	return img, nil
}

func constantFor(v any) (Constant, error) {
	switch x := v.(type) {
	case nil:
		return Constant{}, nil
	case []string:
		return Constant{Names: x}, nil
	case *vm.BlockSymbolTable:
		params := x.Parameters
		if params == nil {
			params = []int{}
		}
		return Constant{Table: &Table{Parameters: params}}, nil
	case *vm.ProgramSymbolTable:
		return Constant{Table: &Table{Symbols: x.Symbols, Program: true}}, nil
	case *vm.PrecompiledBlock:
		b := &Block{Handle: int(x.Handle)}
		if x.Table != nil {
			b.Parameters = x.Table.Parameters
		}
		return Constant{Block: b}, nil
	case vm.Helper:
		return Constant{}, fmt.Errorf("helper has no name")
	}
	return Constant{Value: v}, nil
}
