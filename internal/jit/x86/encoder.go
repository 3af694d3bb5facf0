// Package x86 implements the x86-64 SysV JIT back-end (spec §4.6).
//
// Encoding follows the teacher's pkg/amd64 style: small functions each
// returning the raw bytes for one instruction form, built from REX/ModRM
// bytes computed from the addressed registers rather than hand-picked
// hex constants, since this back-end needs a family of width-parameterized
// memory operand forms the teacher's fixed (%r13,%r12) addressing never
// required. See https://wiki.osdev.org/X86-64_Instruction_Encoding for the
// general encoding reference the teacher's own comments cite.
package x86

import "encoding/binary"

// Register numbers (0-15); 8-15 require REX.B/R/X.
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
	regRSI = 6
	regRDI = 7
	regR12 = 12
	regR13 = 13
)

// Width-ops: which opcode/operand-size prefix a given cell width needs.
type opWidth int

const (
	w8 opWidth = iota
	w16
	w32
	w64
)

func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// memOp encodes the ModRM+disp32 bytes for the operand [rbp + disp32],
// the fixed form this back-end uses for every cell access (spec §4.6:
// "rbp-relative memory operands using the 32-bit displacement form").
// regField carries either the /digit extension opcode or a source/dest
// register, per the caller's instruction form.
func memOp(regField byte, disp32 int32) []byte {
	out := []byte{modrm(0x2, regField, regRBP)}
	return append(out, le32(disp32)...)
}

// pushReg64/popReg64 encode push/pop of a 64-bit GPR (spec §4.6 prologue:
// "saves rbp, rbx, r12, r13, r14, r15").
func pushReg64(reg byte) []byte {
	if reg >= 8 {
		return []byte{rex(false, false, false, true), 0x50 + reg&7}
	}
	return []byte{0x50 + reg}
}

func popReg64(reg byte) []byte {
	if reg >= 8 {
		return []byte{rex(false, false, false, true), 0x58 + reg&7}
	}
	return []byte{0x58 + reg}
}

// movRegReg64 encodes mov dst, src (64-bit).
func movRegReg64(dst, src byte) []byte {
	return []byte{
		rex(true, src >= 8, false, dst >= 8),
		0x89,
		modrm(0x3, src&7, dst&7),
	}
}

// addSubRspImm8 encodes add/sub rsp, imm8 (prologue/epilogue stack
// alignment, spec §4.6: "subtracts 8 from rsp to maintain 16-byte
// alignment across callee calls").
func addSubRspImm8(sub bool, imm8 int8) []byte {
	digit := byte(0x0) // add
	if sub {
		digit = 0x5
	}
	return []byte{rex(true, false, false, false), 0x83, modrm(0x3, digit, regRSP), byte(imm8)}
}

// addRegImm32 encodes add/sub reg, imm32 (64-bit). Used to advance the
// cell pointer (rbp) by a move's delta in bytes.
func addRegImm32(sub bool, reg byte, imm32 int32) []byte {
	digit := byte(0x0)
	if sub {
		digit = 0x5
	}
	out := []byte{rex(true, false, false, reg >= 8), 0x81, modrm(0x3, digit, reg&7)}
	return append(out, le32(imm32)...)
}

// cmpMemImm encodes cmp WIDTH [rbp+disp32], 0, used to test a cell
// against zero ahead of a conditional branch (replacing the teacher's
// fixed-width testb with a width-parameterized cmp).
func cmpMemImm(w opWidth, disp32 int32) []byte {
	var out []byte
	switch w {
	case w16:
		out = append(out, 0x66)
	}
	hasRexW := w == w64
	out = append(out, rex(hasRexW, false, false, false))
	op := byte(0x83) // cmp r/m, imm8 (sign-extended) for 16/32/64-bit
	if w == w8 {
		op = 0x80
	}
	out = append(out, op)
	out = append(out, memOp(0x7, disp32)...)
	out = append(out, 0x00) // imm8 = 0
	return out
}

// movMemImm encodes mov WIDTH [rbp+disp32], imm (set, spec §4.6 "set"
// handling via a fixed template per width).
func movMemImm(w opWidth, disp32 int32, imm int32) []byte {
	var out []byte
	switch w {
	case w16:
		out = append(out, 0x66)
	}
	hasRexW := w == w64
	out = append(out, rex(hasRexW, false, false, false))
	switch w {
	case w8:
		out = append(out, 0xC6)
		out = append(out, memOp(0x0, disp32)...)
		out = append(out, byte(imm))
	case w16:
		out = append(out, 0xC7)
		out = append(out, memOp(0x0, disp32)...)
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(imm))
		out = append(out, b...)
	default: // w32, w64 (imm32 sign-extended for w64)
		out = append(out, 0xC7)
		out = append(out, memOp(0x0, disp32)...)
		out = append(out, le32(imm)...)
	}
	return out
}

// addSubMemImm encodes add/sub WIDTH [rbp+disp32], imm8 (wrapping add,
// spec §4.6 "add"). imm8 is sign-extended; the compiler reduces byte-cell
// adds mod 256 into imm8 range, and wider cells with larger constants
// route through addSubMemImm32 below.
func addSubMemImm(w opWidth, sub bool, disp32 int32, imm8 int8) []byte {
	var out []byte
	switch w {
	case w16:
		out = append(out, 0x66)
	}
	hasRexW := w == w64
	out = append(out, rex(hasRexW, false, false, false))
	op := byte(0x83)
	if w == w8 {
		op = 0x80
	}
	digit := byte(0x0)
	if sub {
		digit = 0x5
	}
	out = append(out, op)
	out = append(out, memOp(digit, disp32)...)
	out = append(out, byte(imm8))
	return out
}

// addSubMemImm32 is the wide-immediate counterpart of addSubMemImm for
// 16/32/64-bit cells, used when a folded add's magnitude exceeds int8.
func addSubMemImm32(w opWidth, sub bool, disp32 int32, imm32 int32) []byte {
	hasRexW := w == w64
	var out []byte
	switch w {
	case w16:
		out = append(out, 0x66)
	}
	out = append(out, rex(hasRexW, false, false, false))
	digit := byte(0x0)
	if sub {
		digit = 0x5
	}
	out = append(out, 0x81)
	out = append(out, memOp(digit, disp32)...)
	switch w {
	case w16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(imm32))
		out = append(out, b...)
	default:
		out = append(out, le32(imm32)...)
	}
	return out
}

// jccRel32 encodes a near conditional jump (0x0F 0x84 = jz, 0x0F 0x85 =
// jnz) with a placeholder rel32, matching the teacher's JzRel32/JnzRel32.
func jccRel32(jnz bool, rel32 int32) []byte {
	op := byte(0x84)
	if jnz {
		op = 0x85
	}
	return append([]byte{0x0F, op}, le32(rel32)...)
}

// callReg encodes call reg (indirect call through rbx/r12, spec §4.6's
// print/read callback registers).
func callReg(reg byte) []byte {
	out := []byte{}
	if reg >= 8 {
		out = append(out, rex(false, false, false, true))
	}
	out = append(out, 0xFF, modrm(0x3, 0x2, reg&7))
	return out
}

// retInsn encodes ret.
func retInsn() []byte { return []byte{0xC3} }

// loadMemToReg encodes mov reg, WIDTH [rbp+disp32], zero/sign-extending
// into a 64-bit register as needed so mac's multiply always operates on a
// full 64-bit value.
func loadMemToReg(w opWidth, dst byte, disp32 int32) []byte {
	var out []byte
	switch w {
	case w64:
		out = append(out, rex(true, dst >= 8, false, false))
		out = append(out, 0x8B)
		out = append(out, memOp(dst&7, disp32)...)
	case w32:
		// mov r32, r/m32 zero-extends the upper 32 bits automatically.
		if dst >= 8 {
			out = append(out, rex(false, true, false, false))
		}
		out = append(out, 0x8B)
		out = append(out, memOp(dst&7, disp32)...)
	case w16:
		if dst >= 8 {
			out = append(out, rex(false, true, false, false))
		}
		out = append(out, 0x0F, 0xB7) // movzx r32, r/m16
		out = append(out, memOp(dst&7, disp32)...)
	default: // w8
		if dst >= 8 {
			out = append(out, rex(false, true, false, false))
		}
		out = append(out, 0x0F, 0xB6) // movzx r32, r/m8
		out = append(out, memOp(dst&7, disp32)...)
	}
	return out
}

// imulRegImm32 encodes imul dst, dst, imm32 (signed 64-bit multiply).
func imulRegImm32(dst byte, imm32 int32) []byte {
	out := []byte{rex(true, dst >= 8, false, dst >= 8), 0x69, modrm(0x3, dst&7, dst&7)}
	return append(out, le32(imm32)...)
}

// negReg encodes neg dst (64-bit), used for mac with multiplier == -1.
func negReg(dst byte) []byte {
	return []byte{rex(true, false, false, dst >= 8), 0xF7, modrm(0x3, 0x3, dst&7)}
}

// addSubMemReg encodes add/sub WIDTH [rbp+disp32], reg (storing a
// computed mac contribution back into the destination cell).
func addSubMemReg(w opWidth, sub bool, disp32 int32, src byte) []byte {
	var out []byte
	switch w {
	case w16:
		out = append(out, 0x66)
	}
	hasRexW := w == w64
	out = append(out, rex(hasRexW, src >= 8, false, false))
	op := byte(0x01)
	if sub {
		op = 0x29
	}
	if w == w8 {
		op -= 1 // 0x00 (add r/m8, r8) / 0x28 (sub r/m8, r8)
	}
	out = append(out, op)
	out = append(out, memOp(src&7, disp32)...)
	return out
}
