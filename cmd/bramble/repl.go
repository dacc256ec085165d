package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kristofer/bramble/pkg/vm"
)

// runREPL starts an interactive read-eval-print loop, grounded on the
// teacher's runREPL/evalREPL/printREPLHelp trio in cmd/smog/main.go.
//
// Bramble statements are newline-terminated and indentation-sensitive
// rather than period-terminated, so this REPL buffers lines until a blank
// line is entered (closing any open indented block) instead of scanning
// for a trailing ".". Unlike the teacher's persistent *compiler.Compiler
// (via CompileIncremental), each input here is parsed and compiled fresh
// — this compiler has no incremental entry point, since every diagnostic
// it ever records stays recorded (pkg/langerr.Collector never resets) and
// reusing one across inputs would make a REPL's first mistake permanent.
// Runtime state still persists correctly: the *vm.VM and its globals and
// event registry are created once and reused for every input.
func runREPL(w io.Writer, modules []string) error {
	fmt.Fprintf(w, "bramble REPL v%s\n", version)
	fmt.Fprintln(w, "Type :help for help, :quit or :exit to leave, a blank line to run a block")
	fmt.Fprintln(w)

	machine := vm.New(w)
	if err := registerModules(machine, modules); err != nil {
		return err
	}
	scanner := bufio.NewScanner(os.Stdin)

	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Fprint(w, "bramble> ")
		} else {
			fmt.Fprint(w, "   ...> ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				fmt.Fprintln(w, "Goodbye!")
				return nil
			case ":help":
				printREPLHelp(w)
				continue
			case "":
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if line != "" {
			// Every non-blank line is buffered; a blank line runs what
			// has been entered so far.
			continue
		}

		input := buf.String()
		buf.Reset()
		evalREPL(w, machine, input)
	}

	return scanner.Err()
}

// evalREPL parses, compiles, and runs one REPL input against the shared
// VM. Errors are printed but never stop the loop, matching the teacher's
// evalREPL error-recovery behavior.
func evalREPL(w io.Writer, machine *vm.VM, input string) {
	chunk, err := compileSource(input)
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}

	if _, err := machine.Run(chunk); err != nil {
		fmt.Fprintf(w, "runtime error: %v\n", err)
	}
}

func printREPLHelp(w io.Writer) {
	fmt.Fprintln(w, "bramble REPL help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  :help     Show this help message")
	fmt.Fprintln(w, "  :quit     Exit the REPL")
	fmt.Fprintln(w, "  :exit     Exit the REPL")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  - Enter bramble statements, one per line")
	fmt.Fprintln(w, "  - Enter a blank line to run what you have entered")
	fmt.Fprintln(w, "  - Globals and registered event listeners persist across inputs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example:")
	fmt.Fprintln(w, `  bramble> x: 40`)
	fmt.Fprintln(w, `     ...> print(x + 2)`)
	fmt.Fprintln(w, `     ...>`)
	fmt.Fprintln(w)
}
