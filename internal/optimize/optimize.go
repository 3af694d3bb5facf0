// Package optimize implements the optimization pipeline (spec §4.1) and
// bracket finalization (spec §4.2). Each level is a pure rewrite of the
// instruction stream; level 0 is the identity.
//
// The pass-pipeline shape follows the teacher's internal/core/optimise.go
// (a sequence of rewrite passes, each followed by a jump-target refix),
// adapted to this spec's exact level semantics and extended opcode set.
// Each level's pass runs exactly once; the pipeline is not iterated to a
// fixpoint.
package optimize

import "github.com/lcox74/bfjit/internal/opcode"

// Level selects how aggressively the pipeline rewrites the stream.
type Level int

const (
	L0 Level = iota // identity
	L1              // constant folding
	L2              // clear-loop to set
	L3              // multiply-accumulate
	L4              // move-offset folding
)

// Run applies levels 0..level in order, each consuming the previous
// level's output (spec §4.1).
func Run(stream []opcode.Instruction, level Level) []opcode.Instruction {
	out := identity(stream)
	if level >= L1 {
		out = constantFold(out)
	}
	if level >= L2 {
		out = clearLoop(out)
	}
	if level >= L3 {
		out = multiplyAccumulate(out)
	}
	if level >= L4 {
		out = moveOffsetFold(out)
	}
	return out
}

// identity copies the stream (level 0).
func identity(stream []opcode.Instruction) []opcode.Instruction {
	out := make([]opcode.Instruction, len(stream))
	copy(out, stream)
	return out
}

// constantFold merges adjacent same-kind add/move instructions (level 1).
// Zero-valued results are preserved; later passes do not rely on removal.
func constantFold(stream []opcode.Instruction) []opcode.Instruction {
	if len(stream) == 0 {
		return stream
	}
	out := make([]opcode.Instruction, 0, len(stream))
	for _, ins := range stream {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if ins.Kind == opcode.Add && last.Kind == opcode.Add && last.Off == ins.Off {
				last.Arg += ins.Arg
				continue
			}
			if ins.Kind == opcode.Move && last.Kind == opcode.Move {
				last.Arg += ins.Arg
				continue
			}
		}
		out = append(out, ins)
	}
	return fixJumpTargets(out)
}

// clearLoop recognizes [-] and folds a trailing add into a preceding set
// at the same cell (level 2).
func clearLoop(stream []opcode.Instruction) []opcode.Instruction {
	out := make([]opcode.Instruction, 0, len(stream))
	i := 0
	for i < len(stream) {
		if i+2 < len(stream) &&
			stream[i].Kind == opcode.JumpForward &&
			stream[i+1].Kind == opcode.Add && stream[i+1].Arg == -1 && stream[i+1].Off == stream[i].Off &&
			stream[i+2].Kind == opcode.JumpBack && stream[i+2].Off == stream[i].Off &&
			stream[i].Arg == i+3 && stream[i+2].Arg == i {
			out = append(out, opcode.Instruction{Off: stream[i].Off, Kind: opcode.Set, Arg: 0, Pos: stream[i].Pos})
			i += 3
			continue
		}
		out = append(out, stream[i])
		i++
	}
	out = fixJumpTargets(out)

	// Fold add(v) immediately following set(s) at the same cell into set(s+v).
	merged := make([]opcode.Instruction, 0, len(out))
	for _, ins := range out {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Kind == opcode.Set && ins.Kind == opcode.Add && last.Off == ins.Off {
				last.Arg += ins.Arg
				continue
			}
		}
		merged = append(merged, ins)
	}
	return fixJumpTargets(merged)
}

// multiplyAccumulate rewrites simple-loop bodies of only add/move, with a
// zero move balance and a -1 total delta on the entry cell, into mac
// instructions followed by a single set(0) (level 3, spec §4.1).
func multiplyAccumulate(stream []opcode.Instruction) []opcode.Instruction {
	out := make([]opcode.Instruction, 0, len(stream))
	i := 0
	for i < len(stream) {
		ins := stream[i]
		if ins.Kind == opcode.JumpForward {
			// ins.Arg is the jump_forward's "skip to" target, one past the
			// matching jump_back (see fixJumpTargets); the jump_back's own
			// index is one less than that.
			end := ins.Arg - 1
			if rewritten, ok := tryMac(stream, i, end); ok {
				out = append(out, rewritten...)
				i = end + 1
				continue
			}
		}
		out = append(out, ins)
		i++
	}
	return fixJumpTargets(out)
}

// tryMac attempts the level-3 rewrite for the loop spanning [start, end]
// (start is the jump_forward index, end its matching jump_back index).
func tryMac(stream []opcode.Instruction, start, end int) ([]opcode.Instruction, bool) {
	if end <= start+1 {
		return nil, false // empty body
	}
	body := stream[start+1 : end]
	entryOff := stream[start].Off

	balance := 0
	entryDelta := 0
	type contribution struct {
		delta int
		off   int
	}
	var contributions []contribution

	for _, ins := range body {
		switch ins.Kind {
		case opcode.Move:
			balance += ins.Arg
		case opcode.Add:
			pos := ins.Off + balance
			if pos == entryOff {
				entryDelta += ins.Arg
			} else {
				contributions = append(contributions, contribution{delta: ins.Arg, off: pos})
			}
		default:
			return nil, false // any other op disables the rewrite
		}
	}
	if balance != 0 || entryDelta != -1 {
		return nil, false
	}

	out := make([]opcode.Instruction, 0, len(contributions)+1)
	for _, c := range contributions {
		out = append(out, opcode.NewMac(entryOff, c.off, c.delta))
	}
	out = append(out, opcode.Instruction{Off: entryOff, Kind: opcode.Set, Arg: 0, Pos: stream[start].Pos})
	return out, true
}

// moveOffsetFold folds standalone moves into a running offset accumulator,
// eliminating move instructions in favor of per-instruction Off fields
// (level 4, spec §4.1). Brackets reset the relative-offset scope: each
// jump_forward pushes the current accumulator, and the matching jump_back
// emits a real move if the accumulator drifted inside the loop body.
func moveOffsetFold(stream []opcode.Instruction) []opcode.Instruction {
	out := make([]opcode.Instruction, 0, len(stream))
	offset := 0
	var pushStack []int

	for _, ins := range stream {
		switch ins.Kind {
		case opcode.Move:
			offset += ins.Arg

		case opcode.JumpForward:
			pushStack = append(pushStack, offset)
			out = append(out, opcode.Instruction{Off: ins.Off + offset, Kind: opcode.JumpForward, Arg: 0, Pos: ins.Pos})

		case opcode.JumpBack:
			start := pushStack[len(pushStack)-1]
			pushStack = pushStack[:len(pushStack)-1]
			if offset != start {
				out = append(out, opcode.NewMove(offset-start))
				offset = start
			}
			out = append(out, opcode.Instruction{Off: ins.Off + start, Kind: opcode.JumpBack, Arg: 0, Pos: ins.Pos})

		case opcode.Mac:
			m := ins
			m.Off += offset
			m.MacOffset += offset
			out = append(out, m)

		default:
			ins.Off += offset
			out = append(out, ins)
		}
	}

	if offset != 0 {
		out = append(out, opcode.NewMove(offset))
	}

	return fixJumpTargets(out)
}

// fixJumpTargets recomputes jump_forward/jump_back Arg pairs via a bracket
// stack, mirroring the teacher's fixJumpTargets.
func fixJumpTargets(stream []opcode.Instruction) []opcode.Instruction {
	stack := make([]int, 0, 8)
	for i, ins := range stream {
		switch ins.Kind {
		case opcode.JumpForward:
			stack = append(stack, i)
		case opcode.JumpBack:
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stream[start].Arg = i + 1
			stream[i].Arg = start
		}
	}
	return stream
}
