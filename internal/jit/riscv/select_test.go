package riscv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectMvPrefersCompressed(t *testing.T) {
	require.Equal(t, cMv(regA0, regA1), selectMv(regA0, regA1))
	require.Len(t, selectMv(regA0, regA1), 2)
}

func TestSelectMvFallsBackWhenOperandIsZero(t *testing.T) {
	out := selectMv(regA0, regZero)
	require.Equal(t, add(regA0, regZero, regZero), out)
	require.Len(t, out, 4)
}

func TestSelectAddiPrefersCompressedInPlace(t *testing.T) {
	out := selectAddi(regA0, regA0, 3)
	require.Equal(t, cAddi(regA0, 3), out)
	require.Len(t, out, 2)
}

func TestSelectAddiFallsBackOnDifferentRegisters(t *testing.T) {
	out := selectAddi(regA0, regA1, 3)
	require.Equal(t, addi(regA0, regA1, 3), out)
	require.Len(t, out, 4)
}

func TestSelectAddiFallsBackOnLargeImmediate(t *testing.T) {
	out := selectAddi(regA0, regA0, 1000)
	require.Equal(t, addi(regA0, regA0, 1000), out)
}

func TestSelectAddiUsesLuiSequenceForHugeImmediate(t *testing.T) {
	out := selectAddi(regA0, regA0, 1<<20)
	require.Greater(t, len(out), 4)
}

func TestSelectLiPrefersCompressed(t *testing.T) {
	out := selectLi(regA0, -5)
	require.Equal(t, cLi(regA0, -5), out)
}

func TestSelectLiFallsBackOnLargeImmediate(t *testing.T) {
	out := selectLi(regA0, 1000)
	require.Equal(t, addi(regA0, regZero, 1000), out)
}

func TestSplitImm32RoundTrips(t *testing.T) {
	for _, imm := range []int32{0, 1, -1, 4096, -4096, 1 << 20, -(1 << 20), 123456} {
		hi, lo := splitImm32(imm)
		require.Equal(t, imm, hi<<12+lo, "imm=%d", imm)
	}
}
