package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/jit/exec"
	"github.com/lcox74/bfjit/internal/jit/riscv"
	"github.com/lcox74/bfjit/internal/jit/x86"
	"github.com/lcox74/bfjit/internal/optimize"
	"github.com/lcox74/bfjit/internal/parser"
	"github.com/lcox74/bfjit/internal/tape"
)

func cmdJIT(args []string) {
	fs := flag.NewFlagSet("jit", flag.ExitOnError)
	optLevel := fs.Int("O", 4, "optimization level (0-4)")
	cellWidth := fs.Int("w", 8, "cell width in bits (8, 16, 32, or 64)")
	cellCount := fs.Int("cells", 30000, "tape cell count")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bfjit jit [-O level] [-w width] [-cells n] <file>")
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
	maxOff, err := optimize.Finalize(stream)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		code []byte
		conv exec.CallConv
	)
	switch exec.HostArch() {
	case exec.ArchX86_64:
		code, err = x86.NewCompiler(stream, w).Compile()
		conv = exec.SysV
	case exec.ArchRV64:
		code, err = riscv.NewCompiler(stream, w).Compile()
		conv = exec.RV64C
	default:
		err = &bferr.Error{Kind: bferr.UnsupportedArchitecture, Msg: "JIT unsupported on this host; use 'bfjit run' instead"}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sandbox, err := tape.New(w, *cellCount, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer sandbox.Release()
	if err := sandbox.Grow(maxOff); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tape.InstallFaultHandler()

	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	read := func() byte {
		b, rerr := in.ReadByte()
		if rerr != nil {
			return 0
		}
		return b
	}
	print := func(b byte) { out.WriteByte(b) }

	if _, err := exec.Run(code, conv, sandbox.PtrAt(0), read, print); err != nil {
		out.Flush()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
