package riscv

// encodeBranch re-encodes a branch block at its shortest legal form given
// the current byte offsets of the branch instruction itself and of its
// target block (spec §4.7 "Branch relaxation").
func (a *Assembler) encodeBranch(b block, selfOff, targetOff int) []byte {
	offset := int32(targetOff - selfOff)

	switch b.kind {
	case kindJump:
		return encodeJump(offset)
	case kindBEQ:
		return encodeCondBranch(true, b.rs1, b.rs2, offset)
	case kindBNE:
		return encodeCondBranch(false, b.rs1, b.rs2, offset)
	default:
		return nil
	}
}

// encodeJump implements "jump: c.j if fits i12, else jal zero, offset"
// (spec §4.7).
func encodeJump(offset int32) []byte {
	if fitsSigned(int64(offset), 12) {
		return cJ(offset)
	}
	return jal(regZero, offset)
}

// encodeCondBranch implements the beq/bne branch relaxation rules of spec
// §4.7: prefer the compressed beqz/bnez specialization when rs2 is x0, rs1
// is in the 3-bit window, and the offset fits i9; otherwise the 32-bit
// beq/bne if it fits i13; otherwise invert the condition and branch over an
// auipc+jalr trampoline that performs a far jump to the real target.
func encodeCondBranch(isEq bool, rs1, rs2 byte, offset int32) []byte {
	if rs2 == regZero && is3Bit(rs1) && fitsSigned(int64(offset), 9) {
		if isEq {
			return cBeqz(rs1, int16(offset))
		}
		return cBnez(rs1, int16(offset))
	}

	if fitsSigned(int64(offset), 13) {
		if isEq {
			return beq(rs1, rs2, offset)
		}
		return bne(rs1, rs2, offset)
	}

	return farBranchTrampoline(isEq, rs1, rs2, offset)
}

// farBranchTrampoline inverts the condition so the branch skips over an
// auipc+jalr pair (8 bytes) that performs the actual far jump when the
// original condition holds (spec §4.7: "invert the condition, branch over
// an auipc+jalr pair (8 bytes) that performs a far jump"). The branch's own
// displacement is relative to its own address, so clearing the whole
// trampoline (the 4-byte branch itself plus the 8-byte auipc+jalr pair)
// requires a displacement of 12, not 8 — 8 lands on the jalr itself, which
// a not-taken branch would then fall straight into and execute anyway.
func farBranchTrampoline(isEq bool, rs1, rs2 byte, offset int32) []byte {
	const skip = 12 // branch (4) + auipc (4) + jalr (4)

	var inverted []byte
	if isEq {
		inverted = bne(rs1, rs2, skip)
	} else {
		inverted = beq(rs1, rs2, skip)
	}

	// The trampoline itself sits 4 bytes after the inverted branch; its
	// auipc+jalr pair must reach `offset` measured from the branch
	// instruction, so the auipc-relative displacement is offset-4.
	auipcOffset := offset - 4
	hi, lo := splitImm32(auipcOffset)

	out := append([]byte{}, inverted...)
	out = append(out, auipc(regT0, hi)...)
	out = append(out, jalr(regZero, regT0, lo)...)
	return out
}
