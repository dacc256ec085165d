// Command bramble is the language's CLI entry point: run, compile, and
// disassemble bramble programs, or drop into a REPL.
//
// Grounded on the teacher's cmd/smog/main.go subcommand set (run/compile/
// disassemble/repl/version, plus "no args -> REPL" and "unrecognized first
// arg -> treat as a file path"), rebuilt on cobra/pflag rather than a bare
// os.Args switch since the rest of this module's dependency stack already
// carries cobra.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var modules []string
	root := &cobra.Command{
		Use:           "bramble [file]",
		Short:         "bramble - an embeddable scripting language",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runREPL(cmd.OutOrStdout(), modules)
			}
			return runFile(cmd.OutOrStdout(), args[0], modules)
		},
	}
	root.SetVersionTemplate("bramble version {{.Version}}\n")
	root.PersistentFlags().StringArrayVar(&modules, "modules", nil,
		"register a host module placeholder (repeatable; graphics, window, io)")

	root.AddCommand(
		newRunCommand(&modules),
		newCompileCommand(),
		newDisassembleCommand(),
		newReplCommand(&modules),
	)
	return root
}

// newRunCommand shares the root command's --modules persistent flag
// rather than redeclaring it, so `bramble run --modules graphics x.bramble`
// and `bramble --modules graphics x.bramble` register the same thing.
func newRunCommand(modules *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Run a .bramble source file or .brc bytecode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.OutOrStdout(), args[0], *modules)
		},
	}
}

func newCompileCommand() *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "compile <input.bramble> [output.brc]",
		Short: "Compile a .bramble source file to .brc bytecode",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFile
			if out == "" && len(args) == 2 {
				out = args[1]
			}
			return compileToFile(cmd.OutOrStdout(), args[0], out)
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output bytecode file (default: input with .brc extension)")
	return cmd
}

func newDisassembleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disassemble <file>",
		Aliases: []string{"disasm"},
		Short:   "Print a human-readable disassembly of a .brc bytecode file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassembleFile(cmd.OutOrStdout(), args[0])
		},
	}
}

func newReplCommand(modules *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.OutOrStdout(), *modules)
		},
	}
}
