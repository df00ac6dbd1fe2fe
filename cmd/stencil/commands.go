package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chazu/stencil/pkg/bytecode"
	"github.com/chazu/stencil/vm"
	"github.com/chazu/stencil/vm/reference"
)

// imagePath returns the single file argument, or the manifest entry.
func (c *cli) imagePath(args []string) (string, error) {
	switch len(args) {
	case 0:
		return c.manifest.EntryPath(), nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected one file, got %d", len(args))
	}
}

// load reads, validates and links the image named by args.
func (c *cli) load(args []string) (*bytecode.Image, *vm.Program, error) {
	path, err := c.imagePath(args)
	if err != nil {
		return nil, nil, err
	}
	img, err := bytecode.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := bytecode.Validate(img); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	reg, err := c.manifest.Registry(bytecode.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	prog, err := bytecode.Link(img, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if img.Name == "" {
		img.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return img, prog, nil
}

// handleRunCommand processes `stencil run [FILE]`. It prints register v0
// if the program set it, otherwise the top of the stack.
func (c *cli) handleRunCommand(args []string) error {
	_, prog, err := c.load(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	machine := vm.New(c.manifest.VMOptions()...)
	res, err := machine.Execute(ctx, prog)
	if err != nil {
		return err
	}

	result := res.Value
	if result.IsNull() {
		result = res.Top()
	}
	fmt.Fprintln(c.out, render(result))
	return nil
}

// render prints references by their current value and anything else by
// its shape.
func render(v vm.Value) string {
	if v.Kind() == vm.KindReference {
		return reference.ToString(v.Reference().Value())
	}
	return v.String()
}

// handleDisasmCommand processes `stencil disasm [FILE]`.
func (c *cli) handleDisasmCommand(args []string) error {
	img, prog, err := c.load(args)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, bytecode.DisassembleWithName(prog, img.Name))
	return nil
}

// handleCompileCommand processes `stencil compile FILE`.
// Usage:
//
//	stencil compile greet.stencil.toml            # ./greet.stbc
//	stencil -o out.stbc compile greet.stencil.toml
func (c *cli) handleCompileCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("compile needs exactly one file")
	}
	img, _, err := c.load(args)
	if err != nil {
		return err
	}

	data, err := bytecode.Marshal(img)
	if err != nil {
		return err
	}

	out := c.output
	if out == "" {
		base := filepath.Base(args[0])
		base = strings.TrimSuffix(base, filepath.Ext(base))
		base = strings.TrimSuffix(base, ".stencil")
		out = base + ".stbc"
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", out, err)
	}
	fmt.Fprintf(c.out, "wrote %s (%d bytes)\n", out, len(data))
	return nil
}

// handleCheckCommand processes `stencil check [FILE]`.
func (c *cli) handleCheckCommand(args []string) error {
	img, prog, err := c.load(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: ok (%d instructions, %d bytes)\n", img.Name, len(img.Code), len(prog.Code))
	return nil
}
