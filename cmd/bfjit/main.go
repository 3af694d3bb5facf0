// Command bfjit is a thin subcommand driver binding the optimizer,
// interpreter, and JIT back-ends together (spec §1 "CLI argument parsing"
// is an external collaborator; this stays a minimal stdlib-flag shell, the
// same shape as the teacher's cmd/bfcc).
package main

import (
	"fmt"
	"os"

	"github.com/lcox74/bfjit/internal/optimize"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bfjit <command> [options] <file>

commands:
  run  [-O level] [-w width] [-budget n] <file>   Interpret the program
  jit  [-O level] [-w width] <file>                Compile and run natively
  ir   [-O level] <file>                           Dump the instruction stream
  tokens <file>                                    Dump tokenizer output`)
	os.Exit(1)
}

func parseOptLevel(level int) optimize.Level {
	switch level {
	case 0, 1, 2, 3, 4:
		return optimize.Level(level)
	default:
		fmt.Fprintf(os.Stderr, "invalid optimization level: %d (must be 0-4)\n", level)
		os.Exit(1)
	}
	return optimize.L0
}

func readSource(file string) []byte {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return src
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "tokens":
		cmdTokens(args)
	case "ir":
		cmdIR(args)
	case "run":
		cmdRun(args)
	case "jit":
		cmdJIT(args)
	default:
		usage()
	}
}
