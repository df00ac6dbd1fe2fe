package vm

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
)

// ---------------------------------------------------------------------------
// Contract errors
// ---------------------------------------------------------------------------

// ContractError reports a violated interpreter contract: a stack shape that
// does not match what an opcode declares, an unbound self, a symbol out of
// range. These are bugs in the program or the host, never user errors, and
// handlers raise them by panicking. VM.Execute turns them into errors.
type ContractError struct {
	Op       string // opcode being evaluated, if known
	Msg      string // what went wrong
	Expected string // expected shape
	Actual   string // observed shape
}

func (e *ContractError) Error() string {
	var sb strings.Builder
	sb.WriteString("contract violation")
	if e.Op != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Op)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&sb, ": expected %s, got %s", e.Expected, e.Actual)
	}
	return sb.String()
}

// IsContractError reports whether err is or wraps a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// ErrStackOverflow is raised when a push would exceed the host's limit.
var ErrStackOverflow = errors.New("stack overflow")

// Fault is any other panic raised while an instruction was evaluated,
// usually from inside a host helper. Execute returns it with the Go stack
// captured at the point of recovery.
type Fault struct {
	Op    Opcode
	Value any    // the recovered panic value
	Stack []byte // goroutine stack, for %+v
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault in %s: %v", f.Op, f.Value)
}

func (f *Fault) Format(s fmt.State, c rune) {
	io.WriteString(s, f.Error())
	if c == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "\n%s", f.Stack)
	}
}

// Unwrap returns the panic value if it was an error.
func (f *Fault) Unwrap() error {
	err, _ := f.Value.(error)
	return err
}

// recovered classifies a panic raised while op was evaluated. Contract
// violations and stack overflows keep their own type; anything else
// becomes a Fault.
func recovered(op Opcode, r any) error {
	switch e := r.(type) {
	case *ContractError:
		return e
	case error:
		if errors.Is(e, ErrStackOverflow) {
			return e
		}
	}
	return &Fault{Op: op, Value: r, Stack: debug.Stack()}
}

// ---------------------------------------------------------------------------
// Checkers
// ---------------------------------------------------------------------------

// Checker validates the shape of an operand.
type Checker interface {
	Check(v Value) bool
	Expected() string
}

type kindCheck Kind

func (k kindCheck) Check(v Value) bool { return v.kind == Kind(k) }
func (k kindCheck) Expected() string   { return Kind(k).String() }

type blockTableCheck struct{}

func (blockTableCheck) Check(v Value) bool { return v.BlockSymbolTable() != nil }
func (blockTableCheck) Expected() string   { return "BlockSymbolTable" }

type optionCheck struct{ inner Checker }

func (o optionCheck) Check(v Value) bool { return v.IsNull() || o.inner.Check(v) }
func (o optionCheck) Expected() string   { return "Option<" + o.inner.Expected() + ">" }

type orCheck struct{ left, right Checker }

func (o orCheck) Check(v Value) bool { return o.left.Check(v) || o.right.Check(v) }
func (o orCheck) Expected() string   { return o.left.Expected() + " | " + o.right.Expected() }

var (
	CheckReference        Checker = kindCheck(KindReference)
	CheckScope            Checker = kindCheck(KindScope)
	CheckHandle           Checker = kindCheck(KindHandle)
	CheckCompilableBlock  Checker = kindCheck(KindCompilable)
	CheckSymbolTable      Checker = kindCheck(KindSymbolTable)
	CheckArguments        Checker = kindCheck(KindArguments)
	CheckBlockSymbolTable Checker = blockTableCheck{}
)

// CheckOption accepts Null or whatever c accepts.
func CheckOption(c Checker) Checker { return optionCheck{c} }

// CheckOr accepts whatever either checker accepts.
func CheckOr(left, right Checker) Checker { return orCheck{left, right} }

// Check returns v if c accepts it and panics with a ContractError naming
// op otherwise.
func Check(op Opcode, v Value, c Checker) Value {
	if !c.Check(v) {
		panic(&ContractError{Op: op.String(), Expected: c.Expected(), Actual: v.Describe()})
	}
	return v
}

// Assert panics with a ContractError naming op when cond is false.
func Assert(op Opcode, cond bool, expected string, actual Value) {
	if !cond {
		panic(&ContractError{Op: op.String(), Expected: expected, Actual: actual.Describe()})
	}
}
