package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/optimize"
	"github.com/lcox74/bfjit/internal/parser"
)

func cmdIR(args []string) {
	fs := flag.NewFlagSet("ir", flag.ExitOnError)
	optLevel := fs.Int("O", 0, "optimization level (0-4)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bfjit ir [-O level] <file>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
	}

	level := parseOptLevel(*optLevel)
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

	fmt.Print(opcode.Dump(stream))
}
