package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lcox74/bfjit/internal/interp"
	"github.com/lcox74/bfjit/internal/optimize"
	"github.com/lcox74/bfjit/internal/parser"
	"github.com/lcox74/bfjit/internal/width"
)

func parseWidth(bits int) width.Width {
	switch bits {
	case 8, 16, 32, 64:
		return width.Width(bits)
	default:
		fmt.Fprintf(os.Stderr, "invalid cell width: %d (must be 8, 16, 32, or 64)\n", bits)
		os.Exit(1)
	}
	return width.W8
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	optLevel := fs.Int("O", 4, "optimization level (0-4)")
	cellWidth := fs.Int("w", 8, "cell width in bits (8, 16, 32, or 64)")
	cellCount := fs.Int("cells", 30000, "tape cell count")
	budget := fs.Int("budget", 0, "instruction budget (0 = unlimited)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bfjit run [-O level] [-w width] [-cells n] [-budget n] <file>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
	}

	level := parseOptLevel(*optLevel)
	w := parseWidth(*cellWidth)
	file := filepath.Clean(fs.Arg(0))
	src := readSource(file)

	stream, err := parser.Parse(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	stream = optimize.Run(stream, level)
	if _, err := optimize.Finalize(stream); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	vm := interp.New(
		interp.WithCellCount(*cellCount),
		interp.WithCellWidth(w),
		interp.WithInput(bufio.NewReader(os.Stdin)),
		interp.WithOutput(out),
		interp.WithInstructionBudget(*budget),
	)
	if err := vm.Run(stream); err != nil {
		out.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
