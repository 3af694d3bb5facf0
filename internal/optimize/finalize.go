package optimize

import (
	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/opcode"
)

// Finalize performs bracket finalization (spec §4.2): a single linear pass
// over the optimized stream using a stack of open jump_forward indices,
// setting each jump_back's Arg to its jump_forward's index and each
// jump_forward's Arg to the index one past its matching jump_back (not to
// the jump_back's own index).
// It also computes max_off, the largest absolute Off/MacOffset across the
// stream, used by the driver to size the tape's danger zones.
//
// On mismatch it returns bferr.UnmatchedJumpForward (stream ends with an
// open bracket — the REPL uses this to request more input) or
// bferr.UnmatchedJumpBack (a stray ']', fatal).
func Finalize(stream []opcode.Instruction) (maxOff int, err error) {
	stack := make([]int, 0, 8)

	for i, ins := range stream {
		switch ins.Kind {
		case opcode.JumpForward:
			stack = append(stack, i)
		case opcode.JumpBack:
			if len(stack) == 0 {
				pos := posOf(ins.Pos)
				return 0, &bferr.Error{Kind: bferr.UnmatchedJumpBack, Msg: "unmatched ']'", Pos: pos}
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stream[start].Arg = i + 1
			stream[i].Arg = start
		}
	}
	if len(stack) > 0 {
		open := stream[stack[0]]
		pos := posOf(open.Pos)
		return 0, &bferr.Error{Kind: bferr.UnmatchedJumpForward, Msg: "unmatched '['", Pos: pos}
	}

	return opcode.MaxOffset(stream), nil
}

func posOf(p *opcode.Position) *bferr.Position {
	if p == nil {
		return nil
	}
	return &bferr.Position{Offset: p.Offset, Line: p.Line, Column: p.Column}
}
