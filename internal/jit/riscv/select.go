package riscv

// selectMv prefers the compressed c.mv form over add rd, x0, rs. c.mv is a
// CR-format instruction with full 5-bit register fields, so unlike the
// arithmetic/load/store forms below it is not limited to the 3-bit "popular"
// register window (spec §4.7: "addi/li/mv have special-cased compressed
// variants matching the RISC-V standard"). It only requires rd and rs to be
// non-zero.
func selectMv(rd, rs byte) []byte {
	if rd != regZero && rs != regZero {
		return cMv(rd, rs)
	}
	return add(rd, regZero, rs)
}

// selectAddi prefers c.addi when rd == rs1 (c.addi's CI format only has one
// register field), rd is non-zero, imm is non-zero, and imm fits the
// compressed form's 6-bit signed immediate. Falls back to the 32-bit addi,
// and further to a lui+add sequence if imm itself overflows addi's 12-bit
// immediate (spec §4.7 "otherwise fall back to the 32-bit form").
func selectAddi(rd, rs1 byte, imm int32) []byte {
	if rd == rs1 && rd != regZero && imm != 0 && fitsSigned(int64(imm), 6) {
		return cAddi(rd, int8(imm))
	}
	if fitsSigned(int64(imm), 12) {
		return addi(rd, rs1, imm)
	}
	return liSequence(rd, rs1, imm)
}

// selectLi prefers c.li when rd is non-zero and imm fits 6 bits signed;
// otherwise falls back to addi rd, x0, imm (12-bit), or a full lui+addi
// sequence for larger constants such as mac multipliers.
func selectLi(rd byte, imm int32) []byte {
	if rd != regZero && fitsSigned(int64(imm), 6) {
		return cLi(rd, int8(imm))
	}
	if fitsSigned(int64(imm), 12) {
		return addi(rd, regZero, imm)
	}
	return liSequence(rd, regZero, imm)
}

// liSequence materializes an immediate that overflows a single addi's
// 12-bit range via lui+addi. For a plain li (rs1 is x0) the constant is
// built in rd itself and no other register is touched. Otherwise it is
// built in a scratch register and then added to rs1: regT1 is used as
// scratch except when rd or rs1 already is regT1, in which case regT0 is
// used instead.
func liSequence(rd, rs1 byte, imm int32) []byte {
	hi, lo := splitImm32(imm)
	if rs1 == regZero {
		out := lui(rd, hi)
		if lo != 0 {
			out = append(out, addi(rd, rd, lo)...)
		}
		return out
	}

	scratch := byte(regT1)
	if rd == regT1 || rs1 == regT1 {
		scratch = regT0
	}

	var out []byte
	out = append(out, lui(scratch, hi)...)
	if lo != 0 {
		out = append(out, addi(scratch, scratch, lo)...)
	}
	out = append(out, add(rd, rs1, scratch)...)
	return out
}

// splitImm32 decomposes a 32-bit immediate into the (hi20, lo12) pair a
// lui+addi pair would use to materialize it, with lo12 sign-extended and hi
// adjusted so hi<<12 + sext(lo) == imm exactly.
func splitImm32(imm int32) (hi int32, lo int32) {
	lo = imm << 20 >> 20 // sign-extend the low 12 bits
	hi = (imm - lo) >> 12
	return hi, lo
}
