package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRexBits(t *testing.T) {
	require.Equal(t, byte(0x40), rex(false, false, false, false))
	require.Equal(t, byte(0x48), rex(true, false, false, false))
	require.Equal(t, byte(0x4F), rex(true, true, true, true))
}

func TestModrm(t *testing.T) {
	require.Equal(t, byte(0xC0), modrm(0x3, 0, 0))
	require.Equal(t, byte(0xFF), modrm(0x3, 7, 7))
}

func TestRetInsn(t *testing.T) {
	require.Equal(t, []byte{0xC3}, retInsn())
}

func TestPushPopReg64LowVsExtended(t *testing.T) {
	require.Equal(t, []byte{0x55}, pushReg64(regRBP))
	require.Equal(t, []byte{rex(false, false, false, true), 0x50 + (regR12 & 7)}, pushReg64(regR12))
	require.Equal(t, []byte{0x58 + regRBP}, popReg64(regRBP))
}

func TestMemOpEncodesRbpRelativeDisp32(t *testing.T) {
	out := memOp(0x0, 16)
	require.Len(t, out, 5) // modrm + 4-byte disp32
	require.Equal(t, modrm(0x2, 0x0, regRBP), out[0])
	require.Equal(t, le32(16), out[1:])
}

func TestMovMemImmWidths(t *testing.T) {
	w8Out := movMemImm(w8, 0, 5)
	require.Contains(t, w8Out, byte(0xC6))

	w16Out := movMemImm(w16, 0, 5)
	require.Equal(t, byte(0x66), w16Out[0]) // operand-size prefix

	w64Out := movMemImm(w64, 0, 5)
	require.Equal(t, rex(true, false, false, false), w64Out[0])
}

func TestJccRel32SelectsOpcode(t *testing.T) {
	jz := jccRel32(false, 10)
	require.Equal(t, []byte{0x0F, 0x84}, jz[:2])

	jnz := jccRel32(true, 10)
	require.Equal(t, []byte{0x0F, 0x85}, jnz[:2])
}

func TestImulRegImm32(t *testing.T) {
	out := imulRegImm32(regRAX, 3)
	require.Equal(t, byte(0x69), out[1])
	require.Equal(t, le32(3), out[len(out)-4:])
}

func TestAddSubMemImmSignBit(t *testing.T) {
	add := addSubMemImm(w8, false, 0, 5)
	sub := addSubMemImm(w8, true, 0, 5)
	require.NotEqual(t, add, sub)
}
