package riscv

import "encoding/binary"

// RV64 GPR numbers used by this back-end (spec §4.7: "s0 as the cell
// pointer, s1 as the read callback, s2 as the print callback").
const (
	regZero = 0
	regRA   = 1
	regSP   = 2
	regA0   = 10
	regA1   = 11
	regA2   = 12
	regS0   = 8
	regS1   = 9
	regS2   = 18
	regS3   = 19
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// is3Bit reports whether reg is in the compressed-instruction register
// window x8-x15 (RVC's "popular" 3-bit register encoding).
func is3Bit(reg byte) bool { return reg >= 8 && reg <= 15 }

func c3(reg byte) byte { return reg - 8 }

func fitsSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// --- 32-bit standard forms ---

func rTypeEncode(opcode, funct3, funct7, rd, rs1, rs2 byte) uint32 {
	return uint32(opcode) | uint32(rd)<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | uint32(funct7)<<25
}

func iTypeEncode(opcode, funct3, rd, rs1 byte, imm int32) uint32 {
	return uint32(opcode) | uint32(rd)<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 | uint32(imm&0xFFF)<<20
}

func sTypeEncode(opcode, funct3, rs1, rs2 byte, imm int32) uint32 {
	lo := uint32(imm) & 0x1F
	hi := (uint32(imm) >> 5) & 0x7F
	return uint32(opcode) | lo<<7 | uint32(funct3)<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | hi<<25
}

func bTypeEncode(opcode, funct3, rs1, rs2 byte, imm int32) uint32 {
	u := uint32(imm)
	b11 := (u >> 11) & 1
	b4_1 := (u >> 1) & 0xF
	b10_5 := (u >> 5) & 0x3F
	b12 := (u >> 12) & 1
	return uint32(opcode) | b11<<7 | b4_1<<8 | uint32(funct3)<<12 | uint32(rs1)<<15 | uint32(rs2)<<20 | b10_5<<25 | b12<<31
}

func jTypeEncode(opcode, rd byte, imm int32) uint32 {
	u := uint32(imm)
	b19_12 := (u >> 12) & 0xFF
	b11 := (u >> 11) & 1
	b10_1 := (u >> 1) & 0x3FF
	b20 := (u >> 20) & 1
	return uint32(opcode) | uint32(rd)<<7 | b19_12<<12 | b11<<20 | b10_1<<21 | b20<<31

}

// addi rd, rs1, imm12
func addi(rd, rs1 byte, imm int32) []byte { return le32(iTypeEncode(0x13, 0x0, rd, rs1, imm)) }

// add rd, rs1, rs2
func add(rd, rs1, rs2 byte) []byte { return le32(rTypeEncode(0x33, 0x0, 0x00, rd, rs1, rs2)) }

// sub rd, rs1, rs2
func sub(rd, rs1, rs2 byte) []byte { return le32(rTypeEncode(0x33, 0x0, 0x20, rd, rs1, rs2)) }

// mul rd, rs1, rs2 (RV64M)
func mul(rd, rs1, rs2 byte) []byte { return le32(rTypeEncode(0x33, 0x0, 0x01, rd, rs1, rs2)) }

// ld/sd rd, imm(rs1); lw/sw, lh/sh, lb/sb analogues for cell widths.
func load(funct3, rd, rs1 byte, imm int32) []byte { return le32(iTypeEncode(0x03, funct3, rd, rs1, imm)) }
func store(funct3, rs1, rs2 byte, imm int32) []byte {
	return le32(sTypeEncode(0x23, funct3, rs1, rs2, imm))
}

func ld(rd, rs1 byte, imm int32) []byte { return load(0x3, rd, rs1, imm) }
func lw(rd, rs1 byte, imm int32) []byte { return load(0x2, rd, rs1, imm) } // lw (sign-extend)
func lh(rd, rs1 byte, imm int32) []byte { return load(0x1, rd, rs1, imm) }
func lb(rd, rs1 byte, imm int32) []byte { return load(0x0, rd, rs1, imm) }
func lbu(rd, rs1 byte, imm int32) []byte { return load(0x4, rd, rs1, imm) }
func lhu(rd, rs1 byte, imm int32) []byte { return load(0x5, rd, rs1, imm) }
func lwu(rd, rs1 byte, imm int32) []byte { return load(0x6, rd, rs1, imm) }

func sd(rs1, rs2 byte, imm int32) []byte { return store(0x3, rs1, rs2, imm) }
func sw(rs1, rs2 byte, imm int32) []byte { return store(0x2, rs1, rs2, imm) }
func sh(rs1, rs2 byte, imm int32) []byte { return store(0x1, rs1, rs2, imm) }
func sb(rs1, rs2 byte, imm int32) []byte { return store(0x0, rs1, rs2, imm) }

// jal/jalr
func jal(rd byte, imm int32) []byte  { return le32(jTypeEncode(0x6F, rd, imm)) }
func jalr(rd, rs1 byte, imm int32) []byte { return le32(iTypeEncode(0x67, 0x0, rd, rs1, imm)) }

// beq/bne rs1, rs2, imm
func beq(rs1, rs2 byte, imm int32) []byte { return le32(bTypeEncode(0x63, 0x0, rs1, rs2, imm)) }
func bne(rs1, rs2 byte, imm int32) []byte { return le32(bTypeEncode(0x63, 0x1, rs1, rs2, imm)) }

// auipc rd, imm20
func auipc(rd byte, imm20 int32) []byte { return le32(uint32(0x17)|uint32(rd)<<7|uint32(uint32(imm20)<<12)) }

// lui rd, imm20
func lui(rd byte, imm20 int32) []byte { return le32(uint32(0x37) | uint32(rd)<<7 | uint32(uint32(imm20)<<12)) }

func ret() []byte { return jalr(regZero, regRA, 0) }

// --- 16-bit compressed (RVC) forms ---

func cAddi(rd byte, imm int8) []byte {
	u := uint16(imm) & 0x3F
	lo := u & 0x1F
	hi := (u >> 5) & 0x1
	v := uint16(0x01) | uint16(rd)<<7 | lo<<2 | hi<<12
	return le16(v)
}

func cLi(rd byte, imm int8) []byte {
	u := uint16(imm) & 0x3F
	lo := u & 0x1F
	hi := (u >> 5) & 0x1
	v := uint16(0x01) | uint16(rd)<<7 | lo<<2 | 0x2<<13 | hi<<12
	return le16(v)
}

func cMv(rd, rs2 byte) []byte {
	v := uint16(0x02) | uint16(rd)<<7 | uint16(rs2)<<2 | 0x8<<12
	return le16(v)
}

// c.ld/c.sd rd'/rs2', imm8(rs1') — 3-bit registers, 8-byte aligned offset.
func cLd(rd, rs1 byte, imm uint8) []byte {
	u := uint16(imm)
	imm53 := (u >> 3) & 0x7
	imm76 := (u >> 6) & 0x3
	v := uint16(0x00) | uint16(c3(rd))<<2 | imm76<<5 | uint16(c3(rs1))<<7 | imm53<<10 | 0x3<<13
	return le16(v)
}

func cSd(rs1, rs2 byte, imm uint8) []byte {
	u := uint16(imm)
	imm53 := (u >> 3) & 0x7
	imm76 := (u >> 6) & 0x3
	v := uint16(0x00) | uint16(c3(rs2))<<2 | imm76<<5 | uint16(c3(rs1))<<7 | imm53<<10 | 0x7<<13
	return le16(v)
}

// cJ encodes the CJ-type 11-bit signed offset per the RVC spec's bit
// order: imm[11|4|9:8|10|6|7|3:1|5] placed at instruction bits [12:2].
func cJ(imm int32) []byte {
	u := uint16(imm)
	bit := func(n uint) uint16 { return (u >> n) & 1 }

	packed := bit(11)<<10 | bit(4)<<9 | bit(9)<<8 | bit(8)<<7 | bit(10)<<6 |
		bit(6)<<5 | bit(7)<<4 | bit(3)<<3 | bit(2)<<2 | bit(1)<<1 | bit(5)
	v := uint16(0x01) | packed<<2 | 0x5<<13
	return le16(v)
}

func cBeqz(rs1 byte, imm int16) []byte { return cBranch(rs1, imm, 0x6) }
func cBnez(rs1 byte, imm int16) []byte { return cBranch(rs1, imm, 0x7) }

func cBranch(rs1 byte, imm int16, funct3 uint16) []byte {
	u := uint16(imm)
	b8 := (u >> 8) & 1
	b4_3 := (u >> 3) & 0x3
	b7_6 := (u >> 6) & 0x3
	b2_1 := (u >> 1) & 0x3
	b5 := (u >> 5) & 1
	v := uint16(0x01) | b5<<2 | b2_1<<3 | b7_6<<5 | uint16(c3(rs1))<<7 | b4_3<<10 | b8<<12 | funct3<<13
	return le16(v)
}

func cNop() []byte { return le16(0x0001) }
