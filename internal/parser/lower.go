package parser

import (
	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/opcode"
)

// lowerRule describes how to lower a foldable token kind to an opcode.
type lowerRule struct {
	kind opcode.Kind
	sign int
	fold bool
}

var tokToRule = [...]lowerRule{
	TokShiftRight: {opcode.Move, +1, true},
	TokShiftLeft:  {opcode.Move, -1, true},
	TokAdd:        {opcode.Add, +1, true},
	TokSub:        {opcode.Add, -1, true},
	TokOut:        {opcode.Print, 0, false},
	TokIn:         {opcode.Read, 0, false},
}

// Parse tokenizes and lowers Brainfuck source directly into an instruction
// stream whose jump targets are already resolved by Lower (optimize.Finalize
// recomputes them after optimization). Off is always zero here; only
// level-4 optimization introduces nonzero offsets (spec §3).
func Parse(src []byte) ([]opcode.Instruction, error) {
	return Lower(Tokenize(src))
}

// Lower converts a token stream into an instruction stream. Each jump_back
// carries an Arg equal to the instruction-stream index of its jump_forward,
// and each jump_forward an Arg one past its matching jump_back's index;
// optimize.Finalize recomputes these after optimization may have
// inserted/removed instructions.
func Lower(toks []Token) ([]opcode.Instruction, error) {
	stream := make([]opcode.Instruction, 0, len(toks))
	loopStack := make([]int, 0, 8)

	for i := 0; i < len(toks); {
		tok := toks[i]
		pos := &opcode.Position{Offset: tok.Pos.Offset, Line: tok.Pos.Line, Column: tok.Pos.Column}

		switch tok.Kind {
		case TokEOF:
			if len(loopStack) > 0 {
				open := toks[loopStack[0]].Pos
				return nil, &bferr.Error{
					Kind: bferr.UnmatchedJumpForward,
					Msg:  "unmatched '['",
					Pos:  &bferr.Position{Offset: open.Offset, Line: open.Line, Column: open.Column},
				}
			}
			return stream, nil

		case TokLBracket:
			loopStack = append(loopStack, len(stream))
			stream = append(stream, opcode.NewJumpForward(0).WithPos(pos))
			i++

		case TokRBracket:
			if len(loopStack) == 0 {
				return nil, &bferr.Error{
					Kind: bferr.UnmatchedJumpBack,
					Msg:  "unmatched ']'",
					Pos:  &bferr.Position{Offset: tok.Pos.Offset, Line: tok.Pos.Line, Column: tok.Pos.Column},
				}
			}
			start := loopStack[len(loopStack)-1]
			loopStack = loopStack[:len(loopStack)-1]
			back := opcode.NewJumpBack(0).WithPos(pos)
			back.Arg = start
			stream = append(stream, back)
			stream[start].Arg = len(stream)
			i++

		case TokAdd, TokSub, TokShiftLeft, TokShiftRight, TokIn, TokOut:
			rule := tokToRule[tok.Kind]
			if rule.fold {
				count := FoldToken(toks, i, tok.Kind)
				var ins opcode.Instruction
				if rule.kind == opcode.Move {
					ins = opcode.NewMove(rule.sign * count)
				} else {
					ins = opcode.NewAdd(0, rule.sign*count)
				}
				stream = append(stream, ins.WithPos(pos))
				i += count
				continue
			}

			var ins opcode.Instruction
			if rule.kind == opcode.Print {
				ins = opcode.NewPrint(0)
			} else {
				ins = opcode.NewRead(0)
			}
			stream = append(stream, ins.WithPos(pos))
			i++

		default:
			return nil, &bferr.Error{
				Kind: bferr.UnmatchedJumpBack,
				Msg:  "unexpected token",
				Pos:  &bferr.Position{Offset: tok.Pos.Offset, Line: tok.Pos.Line, Column: tok.Pos.Column},
			}
		}
	}
	return stream, nil
}
