// Package bytecode loads, validates and links stencil program images.
//
// A program image is the portable form of a stencil program: a string
// table, a constant table and a list of assembly lines, one instruction
// per line. Images are written by hand in TOML or produced by a compiler
// and stored in a compact binary form.
//
// # Image formats
//
// The TOML form is meant for people and tests:
//
//	version = 1
//	strings = ["name"]
//	code = [
//	    "RootScope 0",
//	    "ResolveMaybeLocal 0",
//	]
//
//	[[constants]]
//	helper = "upper"
//
// The binary form starts with the "STBC" magic and a big-endian format
// version, followed by the image as canonical CBOR. LoadFile accepts
// either and tells them apart by the magic.
//
// # Pipeline
//
//   - DecodeTOML / Unmarshal: bytes to Image
//   - Validate: structural check of the Image against a CUE schema built
//     from the opcode table (opcode names, operand counts, field shapes)
//   - Link: resolve helpers through a Registry, build the constant pool,
//     check operand handles and encode the instructions into a vm.Program
//   - Disassemble: human-readable listing of a linked program
//
// Contract checks on stack shapes remain the VM's job; Link only rejects
// what can be known before execution.
package bytecode
