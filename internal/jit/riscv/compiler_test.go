package riscv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/optimize"
	"github.com/lcox74/bfjit/internal/parser"
	"github.com/lcox74/bfjit/internal/width"
)

func compile(t *testing.T, src string, w width.Width) []byte {
	t.Helper()
	stream, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	stream = optimize.Run(stream, optimize.L4)
	_, err = optimize.Finalize(stream)
	require.NoError(t, err)

	code, err := NewCompiler(stream, w).Compile()
	require.NoError(t, err)
	return code
}

func TestCompileProducesCode(t *testing.T) {
	code := compile(t, "+", width.W8)
	require.NotEmpty(t, code)
}

func TestCompileBalancedLoop(t *testing.T) {
	code := compile(t, "++[->+<]", width.W8)
	require.NotEmpty(t, code)
}

func TestCompileNestedLoopRelaxes(t *testing.T) {
	code := compile(t, "++[>+[>+<-]<-]", width.W8)
	require.NotEmpty(t, code)
}

func TestCompileRejectsOversizedOffset(t *testing.T) {
	stream, err := parser.Parse([]byte("+"))
	require.NoError(t, err)
	stream[0].Off = 1 << 30
	_, err = NewCompiler(stream, width.W64).Compile()
	require.Error(t, err)
}

// emitMac's non-unit-multiplier path materializes the multiplier via
// selectLi into regT1 then multiplies into regT0; assert those exact
// instruction bytes appear in the compiled output at each width, rather
// than only checking the buffer is non-empty.
func TestCompileMacEmitsExactBytesPerWidth(t *testing.T) {
	stream := []opcode.Instruction{opcode.NewMac(0, 8, 3)}
	for _, w := range []width.Width{width.W8, width.W16, width.W32, width.W64} {
		code, err := NewCompiler(stream, w).Compile()
		require.NoError(t, err)

		wantLi := selectLi(regT1, 3)
		wantMul := mul(regT0, regT0, regT1)
		wantAdd := add(regT1, regT1, regT0)

		require.Contains(t, string(code), string(wantLi), "width %v", w)
		require.Contains(t, string(code), string(wantMul), "width %v", w)
		require.Contains(t, string(code), string(wantAdd), "width %v", w)
	}
}

func TestCompileMacUnitMultiplierSkipsMul(t *testing.T) {
	stream := []opcode.Instruction{opcode.NewMac(0, 8, 1)}
	code, err := NewCompiler(stream, width.W8).Compile()
	require.NoError(t, err)
	require.NotContains(t, string(code), string(mul(regT0, regT0, regT1)))
}

func TestCompileAllWidths(t *testing.T) {
	for _, w := range []width.Width{width.W8, width.W16, width.W32, width.W64} {
		code := compile(t, "+++.,-[-]", w)
		require.NotEmpty(t, code)
	}
}
