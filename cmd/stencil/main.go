// Stencil CLI - runs, checks and disassembles stencil program images
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/stencil/manifest"
)

func main() {
	configDir := flag.String("config", ".", "Directory to search upward for stencil.toml")
	trace := flag.Bool("trace", false, "Log every dispatched instruction (needs -v 2 or more)")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	output := flag.String("o", "", "Output file for compile")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stencil [options] <command> [file]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [FILE]      Run a program image (default: the manifest entry)\n")
		fmt.Fprintf(os.Stderr, "  disasm [FILE]   Print a bytecode listing\n")
		fmt.Fprintf(os.Stderr, "  compile FILE    Convert a TOML image to binary (-o OUT)\n")
		fmt.Fprintf(os.Stderr, "  check [FILE]    Validate and link without running\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stencil run greet.stencil.toml\n")
		fmt.Fprintf(os.Stderr, "  stencil -o greet.stbc compile greet.stencil.toml\n")
		fmt.Fprintf(os.Stderr, "  stencil -trace -v 2 run greet.stbc\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*configDir)
	}
	if *trace {
		m.VM.Trace = true
	}
	if *verbosity >= 0 {
		m.Log.Verbosity = *verbosity
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	c := &cli{manifest: m, out: os.Stdout, output: *output}
	if err := c.dispatch(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries what every command needs.
type cli struct {
	manifest *manifest.Manifest
	out      io.Writer
	output   string
}

func (c *cli) dispatch(command string, args []string) error {
	switch command {
	case "run":
		return c.handleRunCommand(args)
	case "disasm":
		return c.handleDisasmCommand(args)
	case "compile":
		return c.handleCompileCommand(args)
	case "check":
		return c.handleCheckCommand(args)
	default:
		return fmt.Errorf("unknown command %q (want run, disasm, compile or check)", command)
	}
}
