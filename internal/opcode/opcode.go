// Package opcode defines the internal instruction representation shared by
// the parser, the optimizer, the interpreter, and both JIT back-ends.
//
// An Instruction is a tagged record: a cell offset plus one of eight
// variants (add, move, print, read, jump_forward, jump_back, set, mac).
// Raw parser output always carries Off == 0; only the level-4 optimization
// pass (see package optimize) produces nonzero offsets.
package opcode

import (
	"fmt"
	"strings"
)

// Kind identifies which variant an Instruction holds.
type Kind int

const (
	Add Kind = iota
	Move
	Print
	Read
	JumpForward
	JumpBack
	Set
	Mac
)

var kindNames = [...]string{
	Add:         "add",
	Move:        "move",
	Print:       "print",
	Read:        "read",
	JumpForward: "jump_forward",
	JumpBack:    "jump_back",
	Set:         "set",
	Mac:         "mac",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Instruction is one node of the instruction stream (spec §3).
type Instruction struct {
	Off  int  // cell offset relative to the current cell pointer
	Kind Kind

	// Arg carries add's/move's/set's signed value, or jump_forward's /
	// jump_back's target program-counter index.
	Arg int

	// MacOffset and MacMultiplier are only meaningful when Kind == Mac:
	// cells[ptr+MacOffset] += cells[ptr+Off] * MacMultiplier.
	MacOffset     int
	MacMultiplier int

	// Pos is optional source-position metadata, nil once instructions are
	// synthesized by the optimizer rather than lowered directly from source.
	Pos *Position
}

// Position mirrors a location in the original source text.
type Position struct {
	Offset int
	Line   int
	Column int
}

func NewAdd(off, v int) Instruction     { return Instruction{Off: off, Kind: Add, Arg: v} }
func NewMove(v int) Instruction         { return Instruction{Kind: Move, Arg: v} }
func NewPrint(off int) Instruction      { return Instruction{Off: off, Kind: Print} }
func NewRead(off int) Instruction       { return Instruction{Off: off, Kind: Read} }
func NewSet(off, v int) Instruction     { return Instruction{Off: off, Kind: Set, Arg: v} }
func NewJumpForward(off int) Instruction {
	return Instruction{Off: off, Kind: JumpForward}
}
func NewJumpBack(off int) Instruction { return Instruction{Off: off, Kind: JumpBack} }

func NewMac(off, macOffset, multiplier int) Instruction {
	return Instruction{Off: off, Kind: Mac, MacOffset: macOffset, MacMultiplier: multiplier}
}

// WithPos attaches source position metadata and returns the instruction.
func (i Instruction) WithPos(p *Position) Instruction {
	i.Pos = p
	return i
}

// Dump renders a human-readable listing of a stream, for debugging.
func Dump(stream []Instruction) string {
	var out strings.Builder
	for i, ins := range stream {
		switch ins.Kind {
		case Add:
			fmt.Fprintf(&out, "%04d: add[%+d]   %+d\n", i, ins.Off, ins.Arg)
		case Move:
			fmt.Fprintf(&out, "%04d: move      %+d\n", i, ins.Arg)
		case Print:
			fmt.Fprintf(&out, "%04d: print[%+d]\n", i, ins.Off)
		case Read:
			fmt.Fprintf(&out, "%04d: read[%+d]\n", i, ins.Off)
		case JumpForward:
			fmt.Fprintf(&out, "%04d: jz[%+d]    -> %d\n", i, ins.Off, ins.Arg)
		case JumpBack:
			fmt.Fprintf(&out, "%04d: jnz[%+d]   -> %d\n", i, ins.Off, ins.Arg)
		case Set:
			fmt.Fprintf(&out, "%04d: set[%+d]   %+d\n", i, ins.Off, ins.Arg)
		case Mac:
			fmt.Fprintf(&out, "%04d: mac[%+d]   -> [%+d] * %+d\n", i, ins.Off, ins.MacOffset, ins.MacMultiplier)
		}
	}
	return out.String()
}

// MaxOffset returns the largest absolute Off/MacOffset across the stream,
// used by the driver to size the tape's danger zones (spec §4.2).
func MaxOffset(stream []Instruction) int {
	max := 0
	for _, ins := range stream {
		if abs(ins.Off) > max {
			max = abs(ins.Off)
		}
		if ins.Kind == Mac && abs(ins.MacOffset) > max {
			max = abs(ins.MacOffset)
		}
	}
	return max
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
