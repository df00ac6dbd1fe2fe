package bytecode

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/chazu/stencil/vm"
)

// ErrInvalidImage is returned by Validate when an image does not match the
// schema.
var ErrInvalidImage = errors.New("invalid image")

const imageSchema = `
#Image: {
	version: 1
	name?: string
	strings?: [...string]
	constants?: [...#Constant]
	code: [...#Instr]
}

#Constant: {
	value?: _
	helper?: =~"^[A-Za-z_][A-Za-z0-9_.-]*$"
	names?: [...string]
	table?: #Table
	block?: #Block
}

#Table: {
	program: true
	symbols?: [...string]
	parameters?: null
} | {
	program?: false
	symbols?: [...string]
	parameters: [...int & >=0]
}

#Block: {
	handle: int & >=0
	parameters?: [...int & >=0]
}
`

// schemaSource renders the image schema with an #Instr definition built
// from the opcode table: one pattern per operand count.
func schemaSource() string {
	byCount := make(map[int][]string)
	maxCount := 0
	for _, op := range vm.AllOpcodes() {
		n := op.Operands()
		byCount[n] = append(byCount[n], op.String())
		maxCount = max(maxCount, n)
	}

	var alts []string
	for n := 0; n <= maxCount; n++ {
		names := byCount[n]
		if len(names) == 0 {
			continue
		}
		pattern := fmt.Sprintf("^ *(%s)", strings.Join(names, "|"))
		if n > 0 {
			pattern += fmt.Sprintf("( +-?[0-9]+){%d}", n)
		}
		alts = append(alts, fmt.Sprintf("=~%q", pattern+" *$"))
	}
	return "#Instr: " + strings.Join(alts, " | ") + "\n" + imageSchema
}

var schema struct {
	sync.Mutex
	image cue.Value
	err   error
	built bool
}

func imageDefinition() (cue.Value, error) {
	if !schema.built {
		schema.built = true
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource(), cue.Filename("image.cue"))
		if err := v.Err(); err != nil {
			schema.err = fmt.Errorf("bytecode: compile schema: %w", err)
		} else {
			schema.image = v.LookupPath(cue.ParsePath("#Image"))
		}
	}
	return schema.image, schema.err
}

// Validate checks img against the image schema. It reports every
// violation found, not only the first.
func Validate(img *Image) error {
	schema.Lock()
	defer schema.Unlock()

	def, err := imageDefinition()
	if err != nil {
		return err
	}

	data := def.Context().Encode(img)
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidImage, details(err))
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidImage, details(err))
	}

	for i, c := range img.Constants {
		if kinds := c.kinds(); len(kinds) > 1 {
			return fmt.Errorf("%w: constants.%d: sets %s; at most one is allowed", ErrInvalidImage, i, strings.Join(kinds, " and "))
		}
	}
	return nil
}

func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}
