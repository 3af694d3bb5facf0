// Package riscv implements the RV64IMC JIT back-end (spec §4.7): a
// block-list assembler with compressed-instruction selection and
// iterative branch relaxation.
//
// The block/label/fix-up/relaxation design is grounded on
// weiyilai-calico's felix/bpf/asm/asm.go eBPF assembler (Block, fixUps,
// addInsnWithOffsetFixup, maybeWriteTrampoline, Assemble) — the closest
// real assembler in the pack to this spec's design, adapted from eBPF's
// fixed 8-byte instructions to RISC-V's mixed 16/32-bit compressed and
// standard encodings and from single-pass label resolution to the
// iterative no-shrink relaxation fixpoint spec §4.7 requires.
package riscv

import "github.com/lcox74/bfjit/internal/diag"

var log = diag.WithComponent("jit/riscv")

// blockKind distinguishes a plain byte-emitting block from one whose
// encoding depends on a branch displacement resolved during relaxation.
type blockKind int

const (
	kindBasic blockKind = iota
	kindJump
	kindBNE
	kindBEQ
)

// block is one element of the ordered block list (spec §3 "Assembler
// state", §9 "Block graph for RV64 assembler": "an ordered container of
// block records ... avoid pointers between blocks; indices keep
// relaxation trivial").
type block struct {
	kind   blockKind
	bytes  []byte // valid for kindBasic, and the last-encoded form otherwise
	rs1    byte
	rs2    byte
	target int // index into the block list
}

// Assembler builds the RV64IMC block list for one finalized instruction
// stream and relaxes branches to their shortest legal encoding.
type Assembler struct {
	blocks []block
}

// newBasic appends a basic block of raw bytes and returns its index.
func (a *Assembler) newBasic(bytes []byte) int {
	a.blocks = append(a.blocks, block{kind: kindBasic, bytes: bytes})
	return len(a.blocks) - 1
}

// newBranch appends a placeholder branch block targeting target (not yet
// known to be in range) and returns its index.
func (a *Assembler) newBranch(kind blockKind, rs1, rs2 byte, target int) int {
	a.blocks = append(a.blocks, block{kind: kind, rs1: rs1, rs2: rs2, target: target})
	return len(a.blocks) - 1
}

// offsets computes the running byte offset of each block.
func (a *Assembler) offsets() []int {
	off := make([]int, len(a.blocks)+1)
	for i, b := range a.blocks {
		off[i+1] = off[i] + len(b.bytes)
	}
	return off
}

// Relax runs the branch-relaxation fixpoint (spec §4.7, §4.8, §8
// invariant 8): re-encode each branch block at its shortest legal form
// given current offsets; repeat while any block grows. A block is never
// allowed to shrink between iterations — if re-encoding would produce a
// shorter form than last time, the new encoding is padded with c.nop to
// the previous length and a warning is logged, matching spec §9's "likely
// defensive" note.
func (a *Assembler) Relax() []byte {
	for {
		off := a.offsets()
		grew := false

		for i := range a.blocks {
			b := &a.blocks[i]
			if b.kind == kindBasic {
				continue
			}
			prevLen := len(b.bytes)
			encoded := a.encodeBranch(*b, off[i], off[b.target])

			switch {
			case prevLen != 0 && len(encoded) < prevLen:
				log.WithField("block", i).Warn("relaxed encoding shrank; padding with c.nop to preserve the no-shrink invariant")
				encoded = padNops(encoded, prevLen)
			case len(encoded) > prevLen:
				grew = true
			}
			b.bytes = encoded
		}

		if !grew {
			break
		}
	}

	var out []byte
	for _, b := range a.blocks {
		out = append(out, b.bytes...)
	}
	return out
}

// padNops extends encoded to length n using c.nop (0x01, 0x00) pairs,
// matching spec §4.7/§9: a block must never shrink between relaxation
// iterations, so a smaller re-encoding is padded rather than accepted.
func padNops(encoded []byte, n int) []byte {
	out := make([]byte, len(encoded), n)
	copy(out, encoded)
	for len(out)+2 <= n {
		out = append(out, 0x01, 0x00) // c.nop
	}
	if len(out) < n {
		out = append(out, 0x00) // odd single-byte remainder, never reached by our even-length forms
	}
	return out
}
