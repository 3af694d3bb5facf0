package riscv

import (
	"math"

	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/width"
)

const frameSize = 48 // ra, s0, s1, s2, s3 (40 bytes), rounded to 16-byte alignment

// Compiler emits an RV64IMC block list for one finalized instruction
// stream (spec §4.7).
type Compiler struct {
	stream []opcode.Instruction
	w      width.Width
	asm    Assembler

	// blockForPC[i] is the block-list index whose bytes begin the
	// encoding of stream[i], used to resolve branch targets once every
	// instruction has been emitted into some block.
	blockForPC []int
	// openForward[pc] is the branch-block index of the not-yet-resolved
	// jump_forward emitted at pc (spec §9 "RV64 back-end's forward-label
	// stack maps to a dynamic array of block indices").
	openForward map[int]int
}

func NewCompiler(stream []opcode.Instruction, w width.Width) *Compiler {
	return &Compiler{
		stream:      stream,
		w:           w,
		blockForPC:  make([]int, len(stream)+1),
		openForward: make(map[int]int),
	}
}

func (c *Compiler) stride() int32 { return int32(c.w.Bytes()) }

func (c *Compiler) appendBasic(bytes []byte) {
	idx := len(c.asm.blocks) - 1
	if idx >= 0 && c.asm.blocks[idx].kind == kindBasic {
		c.asm.blocks[idx].bytes = append(c.asm.blocks[idx].bytes, bytes...)
		return
	}
	c.asm.newBasic(append([]byte{}, bytes...))
}

// Compile produces the relaxed machine code buffer.
func (c *Compiler) Compile() ([]byte, error) {
	c.emitPrologue()

	for pc, ins := range c.stream {
		c.blockForPC[pc] = len(c.asm.blocks)
		if err := c.emitOp(pc, ins); err != nil {
			return nil, err
		}
	}
	c.blockForPC[len(c.stream)] = len(c.asm.blocks)

	c.emitEpilogue()
	return c.asm.Relax(), nil
}

func (c *Compiler) emitPrologue() {
	c.appendBasic(addi(regSP, regSP, -frameSize))
	c.appendBasic(sd(regSP, regRA, frameSize-8))
	c.appendBasic(sd(regSP, regS0, frameSize-16))
	c.appendBasic(sd(regSP, regS1, frameSize-24))
	c.appendBasic(sd(regSP, regS2, frameSize-32))
	c.appendBasic(sd(regSP, regS3, frameSize-40))

	c.appendBasic(selectMv(regS0, regA0))
	c.appendBasic(selectMv(regS1, regA1))
	c.appendBasic(selectMv(regS2, regA2))
}

func (c *Compiler) emitEpilogue() {
	c.appendBasic(selectMv(regA0, regS0))
	c.appendBasic(ld(regRA, regSP, frameSize-8))
	c.appendBasic(ld(regS0, regSP, frameSize-16))
	c.appendBasic(ld(regS1, regSP, frameSize-24))
	c.appendBasic(ld(regS2, regSP, frameSize-32))
	c.appendBasic(ld(regS3, regSP, frameSize-40))
	c.appendBasic(addi(regSP, regSP, frameSize))
	c.appendBasic(ret())
}

const (
	regT0 = 5
	regT1 = 6
)

func cellAddr(off int, stride int32) (int32, error) {
	d := int64(off) * int64(stride)
	if !fitsSigned(d, 12) { // load/store displacements are 12-bit signed
		return 0, &bferr.Error{Kind: bferr.UnsupportedLargeOffset, Msg: "cell offset exceeds RV64 immediate range"}
	}
	return int32(d), nil
}

func (c *Compiler) loadCell(reg byte, off int) ([]byte, error) {
	d, err := cellAddr(off, c.stride())
	if err != nil {
		return nil, err
	}
	switch c.w {
	case width.W8:
		return lbu(reg, regS0, d), nil
	case width.W16:
		return lhu(reg, regS0, d), nil
	case width.W32:
		return lwu(reg, regS0, d), nil
	default:
		return ld(reg, regS0, d), nil
	}
}

func (c *Compiler) storeCell(reg byte, off int) ([]byte, error) {
	d, err := cellAddr(off, c.stride())
	if err != nil {
		return nil, err
	}
	switch c.w {
	case width.W8:
		return sb(regS0, reg, d), nil
	case width.W16:
		return sh(regS0, reg, d), nil
	case width.W32:
		return sw(regS0, reg, d), nil
	default:
		return sd(regS0, reg, d), nil
	}
}

func (c *Compiler) emitOp(pc int, ins opcode.Instruction) error {
	switch ins.Kind {
	case opcode.Move:
		delta := int64(ins.Arg) * int64(c.stride())
		if delta < math.MinInt32 || delta > math.MaxInt32 {
			return &bferr.Error{Kind: bferr.UnsupportedLargeOffset, Msg: "move delta exceeds RV64 immediate range"}
		}
		c.appendBasic(selectAddi(regS0, regS0, int32(delta)))

	case opcode.Add:
		load, err := c.loadCell(regT0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(load)
		c.appendBasic(selectAddi(regT0, regT0, int32(ins.Arg)))
		store, err := c.storeCell(regT0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(store)

	case opcode.Set:
		c.appendBasic(selectLi(regT0, int32(ins.Arg)))
		store, err := c.storeCell(regT0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(store)

	case opcode.Print:
		load, err := c.loadCell(regA0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(load)
		c.appendBasic(jalr(regRA, regS2, 0))

	case opcode.Read:
		c.appendBasic(jalr(regRA, regS1, 0))
		store, err := c.storeCell(regA0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(store)

	case opcode.Mac:
		return c.emitMac(ins)

	case opcode.JumpForward:
		load, err := c.loadCell(regT0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(load)
		bi := c.asm.newBranch(kindBEQ, regT0, regZero, -1) // target patched at matching jump_back
		c.openForward[pc] = bi
		c.asm.newBasic(nil) // fresh basic block begins the loop body

	case opcode.JumpBack:
		load, err := c.loadCell(regT0, ins.Off)
		if err != nil {
			return err
		}
		c.appendBasic(load)
		openPC := ins.Arg
		fwdBlock, ok := c.openForward[openPC]
		if !ok {
			return &bferr.Error{Kind: bferr.UnmatchedJumpBack, Msg: "jump_back with no matching jump_forward block"}
		}
		backTargetBlock := fwdBlock + 1 // the basic block opened right after the forward branch
		bi := c.asm.newBranch(kindBNE, regT0, regZero, backTargetBlock)
		c.asm.blocks[fwdBlock].target = bi + 1 // forward branch lands just past this jump_back
		c.asm.newBasic(nil)
	}
	return nil
}

func (c *Compiler) emitMac(ins opcode.Instruction) error {
	src, err := c.loadCell(regT0, ins.Off)
	if err != nil {
		return err
	}
	dst, err := c.loadCell(regT1, ins.MacOffset)
	if err != nil {
		return err
	}
	c.appendBasic(src)

	switch ins.MacMultiplier {
	case 1:
		// nothing extra: t0 already holds the value to add
	case -1:
		c.appendBasic(sub(regT0, regZero, regT0))
	default:
		c.appendBasic(selectLi(regT1, int32(ins.MacMultiplier)))
		c.appendBasic(mul(regT0, regT0, regT1))
	}

	// regT1 may have held the multiplier constant; (re)load the real
	// destination value now and accumulate the contribution into it.
	c.appendBasic(dst)
	c.appendBasic(add(regT1, regT1, regT0))

	store, err := c.storeCell(regT1, ins.MacOffset)
	if err != nil {
		return err
	}
	c.appendBasic(store)
	return nil
}
