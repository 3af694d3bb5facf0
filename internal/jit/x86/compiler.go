package x86

import (
	"encoding/binary"
	"math"

	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/width"
)

// fixup records a pending branch displacement to patch once its target
// address is known, mirroring the teacher's internal/codegen/linux
// jumpFixup. Pending sites are kept in a map keyed by the jump_forward's
// program-counter index (looked up through the matching jump_back's Arg)
// rather than in a two-pass label table, since the JIT compiles in one
// left-to-right pass over already-finalized jump targets.
type fixup struct {
	site int // byte offset in code where the rel32 begins
}

// Compiler emits x86-64 SysV machine code for one finalized instruction
// stream (spec §4.6).
type Compiler struct {
	stream []opcode.Instruction
	w      width.Width
	code   []byte

	// forwardSites[pc] is the patch site for the jump_forward at pc; it is
	// filled in when that jump_forward is emitted and patched when its
	// matching jump_back is emitted.
	forwardSites map[int]fixup
	// pcAddr records the code offset at which each stream index's
	// instruction begins, needed to compute jump_back's backward
	// displacement.
	pcAddr []int
}

// NewCompiler prepares a compiler for stream at the given cell width. The
// stream must already be finalized (bracket targets resolved).
func NewCompiler(stream []opcode.Instruction, w width.Width) *Compiler {
	return &Compiler{
		stream:       stream,
		w:            w,
		code:         make([]byte, 0, 256+len(stream)*12),
		forwardSites: make(map[int]fixup),
		pcAddr:       make([]int, len(stream)+1),
	}
}

func opWidthOf(w width.Width) opWidth {
	switch w {
	case width.W8:
		return w8
	case width.W16:
		return w16
	case width.W32:
		return w32
	default:
		return w64
	}
}

func (c *Compiler) stride() int32 { return int32(c.w.Bytes()) }

// Compile produces the machine code buffer. Returns
// bferr.UnsupportedLargeOffset if any emitted disp32 would not fit a
// signed 32-bit displacement (spec §4.6, §4.8).
func (c *Compiler) Compile() ([]byte, error) {
	c.emitPrologue()

	for pc, ins := range c.stream {
		c.pcAddr[pc] = len(c.code)
		if err := c.emitOp(pc, ins); err != nil {
			return nil, err
		}
	}
	c.pcAddr[len(c.stream)] = len(c.code)

	c.emitEpilogue()
	return c.code, nil
}

func (c *Compiler) emit(b []byte) { c.code = append(c.code, b...) }

// emitPrologue saves callee-saved registers and binds the incoming
// arguments (rdi=cell ptr, rsi=read cb, rdx=print cb) to rbp/r12/rbx
// (spec §4.6).
func (c *Compiler) emitPrologue() {
	c.emit(pushReg64(regRBP))
	c.emit(pushReg64(regRBX))
	c.emit(pushReg64(regR12))
	c.emit(pushReg64(13))
	c.emit(pushReg64(14))
	c.emit(pushReg64(15))
	c.emit(addSubRspImm8(true, 8))

	c.emit(movRegReg64(regRBP, regRDI))
	c.emit(movRegReg64(regR12, regRSI))
	c.emit(movRegReg64(regRBX, regRDX))
}

// emitEpilogue moves the final cell pointer into rax and restores
// callee-saved registers in reverse (spec §4.6).
func (c *Compiler) emitEpilogue() {
	c.emit(movRegReg64(regRAX, regRBP))
	c.emit(addSubRspImm8(false, 8))
	c.emit(popReg64(15))
	c.emit(popReg64(14))
	c.emit(popReg64(13))
	c.emit(popReg64(regR12))
	c.emit(popReg64(regRBX))
	c.emit(popReg64(regRBP))
	c.emit(retInsn())
}

func disp32(off int, stride int32) (int32, error) {
	d := int64(off) * int64(stride)
	if d < math.MinInt32 || d > math.MaxInt32 {
		return 0, &bferr.Error{Kind: bferr.UnsupportedLargeOffset, Msg: "cell offset does not fit a 32-bit displacement"}
	}
	return int32(d), nil
}

func (c *Compiler) emitOp(pc int, ins opcode.Instruction) error {
	ow := opWidthOf(c.w)
	stride := c.stride()

	switch ins.Kind {
	case opcode.Move:
		delta := int64(ins.Arg) * int64(stride)
		if delta < math.MinInt32 || delta > math.MaxInt32 {
			return &bferr.Error{Kind: bferr.UnsupportedLargeOffset, Msg: "move delta does not fit a 32-bit immediate"}
		}
		if delta >= 0 {
			c.emit(addRegImm32(false, regRBP, int32(delta)))
		} else {
			c.emit(addRegImm32(true, regRBP, int32(-delta)))
		}

	case opcode.Add:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		v := ins.Arg
		if ow == w8 {
			// Byte cells wrap mod 256, so any add reduces to an imm8.
			v = int(int8(v))
		}
		if v >= -128 && v <= 127 {
			if v >= 0 {
				c.emit(addSubMemImm(ow, false, d, int8(v)))
			} else {
				c.emit(addSubMemImm(ow, true, d, int8(-v)))
			}
		} else if v >= 0 {
			c.emit(addSubMemImm32(ow, false, d, int32(v)))
		} else {
			c.emit(addSubMemImm32(ow, true, d, int32(-v)))
		}

	case opcode.Set:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		c.emit(movMemImm(ow, d, int32(ins.Arg)))

	case opcode.Print:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		c.emit(loadMemToReg(ow, regRDI, d))
		c.emit(callReg(regRBX))

	case opcode.Read:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		c.emit(callReg(regR12))
		c.emit(movMemFromRAX(ow, d))

	case opcode.JumpForward:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		c.emit(cmpMemImm(ow, d))
		site := len(c.code) + 2 // rel32 starts after the 2-byte 0F 8x opcode
		c.emit(jccRel32(false, 0))
		c.forwardSites[pc] = fixup{site: site}

	case opcode.JumpBack:
		d, err := disp32(ins.Off, stride)
		if err != nil {
			return err
		}
		c.emit(cmpMemImm(ow, d))
		openPC := ins.Arg
		fwd, ok := c.forwardSites[openPC]
		if !ok {
			return &bferr.Error{Kind: bferr.UnmatchedJumpBack, Msg: "jump_back with no matching jump_forward fix-up site"}
		}
		site := len(c.code) + 2
		backTarget := c.pcAddr[openPC] // re-enter at the jump_forward's own cmp+je
		rel := int32(backTarget - (site + 4))
		c.emit(jccRel32(true, rel))

		// Patch the forward je to land just past this jump_back.
		fwdTarget := len(c.code)
		fwdRel := int32(fwdTarget - (fwd.site + 4))
		binary.LittleEndian.PutUint32(c.code[fwd.site:], uint32(fwdRel))

	case opcode.Mac:
		return c.emitMac(ins, ow, stride)
	}
	return nil
}

// movMemFromRAX stores the low bits of rax (populated by the read
// callback's return value) into the width-appropriate cell.
func movMemFromRAX(w opWidth, disp32 int32) []byte {
	switch w {
	case w8:
		return append([]byte{0x88, }, memOp(regRAX, disp32)...) // mov r/m8, al
	case w16:
		out := []byte{0x66, 0x89}
		return append(out, memOp(regRAX, disp32)...)
	case w32:
		out := []byte{0x89}
		return append(out, memOp(regRAX, disp32)...)
	default:
		out := []byte{rex(true, false, false, false), 0x89}
		return append(out, memOp(regRAX, disp32)...)
	}
}

// emitMac implements cells[ptr+MacOffset] += cells[ptr+off] * multiplier.
// The source cell is loaded into r13; multiplier 1 adds r13 to the
// destination, multiplier -1 negates r13 and then adds it (no sub form is
// used), and every other multiplier goes through imul r13, r13, imm32 at
// every cell width, byte cells included (no mul via al is used).
func (c *Compiler) emitMac(ins opcode.Instruction, ow opWidth, stride int32) error {
	srcDisp, err := disp32(ins.Off, stride)
	if err != nil {
		return err
	}
	dstDisp, err := disp32(ins.MacOffset, stride)
	if err != nil {
		return err
	}

	c.emit(loadMemToReg(ow, 13, srcDisp)) // r13 := cells[ptr+off] (zero-extended)

	switch ins.MacMultiplier {
	case 1:
		c.emit(addSubMemReg(ow, false, dstDisp, 13))
		return nil
	case -1:
		c.emit(negReg(13))
		c.emit(addSubMemReg(ow, false, dstDisp, 13))
		return nil
	}

	c.emit(imulRegImm32(13, int32(ins.MacMultiplier)))
	c.emit(addSubMemReg(ow, false, dstDisp, 13))
	return nil
}
