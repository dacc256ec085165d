package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kristofer/bramble/pkg/bytecode"
	"github.com/kristofer/bramble/pkg/compiler"
	"github.com/kristofer/bramble/pkg/parser"
	"github.com/kristofer/bramble/pkg/registry"
	"github.com/kristofer/bramble/pkg/vm"
)

// packagesManifest is the default on-disk list of packages the compiler
// will accept in an `import` statement. Its absence is not an error — an
// empty registry just means every import is rejected (see pkg/registry).
const packagesManifest = "bramble-packages.txt"

func loadResolver() compiler.PackageResolver {
	r, err := registry.Load(packagesManifest)
	if err != nil {
		return registry.New()
	}
	return r
}

// runFile runs a .bramble source file or a .brc compiled bytecode file,
// dispatching on extension exactly as the teacher's runFile does.
func runFile(w io.Writer, filename string, modules []string) error {
	if filepath.Ext(filename) == ".brc" {
		return runBytecodeFile(w, filename, modules)
	}
	return runSourceFile(w, filename, modules)
}

func runSourceFile(w io.Writer, filename string, modules []string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	chunk, err := compileSource(string(data))
	if err != nil {
		return err
	}

	machine := vm.New(w)
	if err := registerModules(machine, modules); err != nil {
		return err
	}
	if _, err := machine.Run(chunk); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

func runBytecodeFile(w io.Writer, filename string, modules []string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()

	chunk, err := bytecode.Decode(f)
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}

	machine := vm.New(w)
	if err := registerModules(machine, modules); err != nil {
		return err
	}
	if _, err := machine.Run(chunk); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

func compileSource(source string) (*bytecode.Chunk, error) {
	p := parser.New(source, nil)
	program := p.Parse()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse error: %s", p.Errors()[0])
	}

	c := compiler.New(nil, loadResolver())
	chunk, ok := c.Compile(program)
	if !ok {
		return nil, fmt.Errorf("compile error: %s", c.Errors()[0].Message)
	}
	return chunk, nil
}

// compileToFile compiles inputFile to bytecode and writes it to outputFile,
// defaulting outputFile to inputFile with its extension swapped for .brc —
// the teacher's compileFile behavior, renamed for this format's extension.
func compileToFile(w io.Writer, inputFile, outputFile string) error {
	if outputFile == "" {
		ext := filepath.Ext(inputFile)
		if ext != "" {
			outputFile = inputFile[:len(inputFile)-len(ext)] + ".brc"
		} else {
			outputFile = inputFile + ".brc"
		}
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	chunk, err := compileSource(string(data))
	if err != nil {
		return err
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	if err := bytecode.Encode(chunk, out); err != nil {
		return fmt.Errorf("writing bytecode: %w", err)
	}

	fmt.Fprintf(w, "Compiled %s -> %s\n", inputFile, outputFile)
	return nil
}

// disassembleFile loads a .brc file and prints its constant pool and
// instruction stream, grounded on the teacher's disassembleFile/
// formatConstant pair but delegating to pkg/bytecode.Disassemble, which
// already walks this chunk format's packed byte stream and recurses into
// nested function constants.
func disassembleFile(w io.Writer, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()

	chunk, err := bytecode.Decode(f)
	if err != nil {
		return fmt.Errorf("loading bytecode: %w", err)
	}

	bytecode.Disassemble(w, filename, chunk)
	return nil
}
