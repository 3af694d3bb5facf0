package exec

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcox74/bfjit/internal/interp"
	"github.com/lcox74/bfjit/internal/jit/riscv"
	"github.com/lcox74/bfjit/internal/jit/x86"
	"github.com/lcox74/bfjit/internal/optimize"
	"github.com/lcox74/bfjit/internal/parser"
	"github.com/lcox74/bfjit/internal/tape"
	"github.com/lcox74/bfjit/internal/width"
)

func TestHostArchMatchesGOARCH(t *testing.T) {
	got := HostArch()
	switch runtime.GOARCH {
	case "amd64":
		require.Equal(t, ArchX86_64, got)
	case "riscv64":
		require.Equal(t, ArchRV64, got)
	default:
		require.Equal(t, ArchUnsupported, got)
	}
}

func TestRunPanicsOnEmptyCode(t *testing.T) {
	require.Panics(t, func() {
		Run(nil, SysV, 0, func() byte { return 0 }, func(byte) {})
	})
}

// TestRunRoundTripsWithInterpreter compiles a mac-exercising program with
// the host's native back-end, executes it through Run, and checks its
// observable output against the interpreter's for the same program and
// input (spec §8 invariant 5: JIT and interpreter agree). Skips on hosts
// this module has no back-end for.
func TestRunRoundTripsWithInterpreter(t *testing.T) {
	const src = "++++++++[>++++++++<-]>+.>,.<[->+>+<<]>>."
	const in = "Z"

	w := width.W8
	stream, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	stream = optimize.Run(stream, optimize.L4)
	maxOff, err := optimize.Finalize(stream)
	require.NoError(t, err)

	var code []byte
	var conv CallConv
	switch HostArch() {
	case ArchX86_64:
		code, err = x86.NewCompiler(stream, w).Compile()
		conv = SysV
	case ArchRV64:
		code, err = riscv.NewCompiler(stream, w).Compile()
		conv = RV64C
	default:
		t.Skip("unsupported host architecture")
	}
	require.NoError(t, err)

	sandbox, err := tape.New(w, 1024, 0)
	require.NoError(t, err)
	defer sandbox.Release()
	require.NoError(t, sandbox.Grow(maxOff))

	input := strings.NewReader(in)
	var jitOut bytes.Buffer
	read := func() byte {
		b, rerr := input.ReadByte()
		if rerr != nil {
			return 0
		}
		return b
	}
	print := func(b byte) { jitOut.WriteByte(b) }

	_, err = Run(code, conv, sandbox.PtrAt(0), read, print)
	require.NoError(t, err)

	interpStream, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	interpStream = optimize.Run(interpStream, optimize.L4)
	_, err = optimize.Finalize(interpStream)
	require.NoError(t, err)

	var interpOut bytes.Buffer
	vm := interp.New(interp.WithInput(strings.NewReader(in)), interp.WithOutput(&interpOut), interp.WithCellWidth(w))
	require.NoError(t, vm.Run(interpStream))

	require.Equal(t, interpOut.String(), jitOut.String())
}

func TestRunRejectsUnknownCallConv(t *testing.T) {
	// A single `ret` instruction is valid, minimal, architecture-specific
	// machine code; only the calling-convention tag under test matters here.
	var retInsn []byte
	switch HostArch() {
	case ArchX86_64:
		retInsn = []byte{0xC3}
	case ArchRV64:
		retInsn = []byte{0x67, 0x80, 0x00, 0x00} // jalr x0, x1, 0
	default:
		t.Skip("unsupported host architecture")
	}

	_, err := Run(retInsn, CallConv(99), 0, func() byte { return 0 }, func(byte) {})
	require.Error(t, err)
}
