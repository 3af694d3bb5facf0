package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/parser"
)

func mustParse(t *testing.T, src string) []opcode.Instruction {
	t.Helper()
	stream, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	return stream
}

func TestLevel0Identity(t *testing.T) {
	stream := mustParse(t, "++>>.")
	out := Run(stream, L0)
	require.Equal(t, stream, out)
}

func TestLevel1ConstantFold(t *testing.T) {
	// The parser already folds adjacent runs, so build an unfolded stream
	// by hand to exercise the optimizer pass itself.
	in := []opcode.Instruction{
		opcode.NewAdd(0, 1),
		opcode.NewAdd(0, 2),
		opcode.NewMove(1),
		opcode.NewMove(1),
		opcode.NewAdd(0, -1),
	}
	out := Run(in, L1)
	require.Equal(t, []opcode.Instruction{
		opcode.NewAdd(0, 3),
		opcode.NewMove(2),
		opcode.NewAdd(0, -1),
	}, out)
}

func TestLevel1PreservesZeroResults(t *testing.T) {
	in := []opcode.Instruction{opcode.NewAdd(0, 1), opcode.NewAdd(0, -1)}
	out := Run(in, L1)
	require.Equal(t, []opcode.Instruction{opcode.NewAdd(0, 0)}, out)
}

func TestLevel2ClearLoop(t *testing.T) {
	stream := mustParse(t, "[-]")
	out := Run(stream, L2)
	require.Equal(t, []opcode.Instruction{{Kind: opcode.Set, Arg: 0, Pos: out[0].Pos}}, out)
}

func TestLevel2ClearLoopThenAddMerges(t *testing.T) {
	stream := mustParse(t, "[-]+++++")
	out := Run(stream, L2)
	require.Len(t, out, 1)
	require.Equal(t, opcode.Set, out[0].Kind)
	require.Equal(t, 5, out[0].Arg)
}

func TestLevel2DoesNotTouchNonClearLoops(t *testing.T) {
	stream := mustParse(t, "[>]")
	out := Run(stream, L2)
	require.Len(t, out, 3)
	require.Equal(t, opcode.JumpForward, out[0].Kind)
}

func TestLevel3MultiplyAccumulate(t *testing.T) {
	// [->+>++<<] : move 1*cell to +1 offset, 2*cell to +2 offset, clear entry.
	stream := mustParse(t, "[->+>++<<]")
	out := Run(stream, L3)

	require.Len(t, out, 3)
	require.Equal(t, opcode.Mac, out[0].Kind)
	require.Equal(t, 0, out[0].Off)
	require.Equal(t, 1, out[0].MacOffset)
	require.Equal(t, 1, out[0].MacMultiplier)

	require.Equal(t, opcode.Mac, out[1].Kind)
	require.Equal(t, 0, out[1].Off)
	require.Equal(t, 2, out[1].MacOffset)
	require.Equal(t, 2, out[1].MacMultiplier)

	require.Equal(t, opcode.Set, out[2].Kind)
	require.Equal(t, 0, out[2].Off)
	require.Equal(t, 0, out[2].Arg)
}

func TestLevel3RejectsUnbalancedLoop(t *testing.T) {
	// Loop body doesn't return the pointer to its start: not a mac candidate.
	stream := mustParse(t, "[->+]")
	out := Run(stream, L3)
	require.Equal(t, opcode.JumpForward, out[0].Kind)
}

func TestLevel3RejectsIOInBody(t *testing.T) {
	stream := mustParse(t, "[-.]")
	out := Run(stream, L3)
	require.Equal(t, opcode.JumpForward, out[0].Kind)
}

func TestLevel3RejectsNonUnitEntryDelta(t *testing.T) {
	stream := mustParse(t, "[--]")
	out := Run(stream, L3)
	require.Equal(t, opcode.JumpForward, out[0].Kind)
}

func TestLevel4MoveOffsetFolding(t *testing.T) {
	// >+< : shift right, add at new cell, shift back. Level 4 should fold
	// the moves into Off and drop the Move instructions entirely.
	stream := mustParse(t, ">+<")
	out := Run(stream, L4)

	require.Len(t, out, 1)
	require.Equal(t, opcode.Add, out[0].Kind)
	require.Equal(t, 1, out[0].Off)
	require.Equal(t, 1, out[0].Arg)
}

func TestLevel4TrailingResidualOffsetEmitsMove(t *testing.T) {
	stream := mustParse(t, ">+")
	out := Run(stream, L4)
	require.Len(t, out, 2)
	require.Equal(t, opcode.Add, out[0].Kind)
	require.Equal(t, 1, out[0].Off)
	require.Equal(t, opcode.Move, out[1].Kind)
	require.Equal(t, 1, out[1].Arg)
}

func TestLevel4BracketsGetFoldedOffsets(t *testing.T) {
	// >[>+<.]< : the loop body's I/O disqualifies level 3's mac rewrite, so
	// the brackets survive to level 4, which must fold the leading ">"
	// into every instruction's Off and restore the pointer at jump_back.
	stream := mustParse(t, ">[>+<.]<")
	out := Run(stream, L4)

	require.Len(t, out, 4)
	require.Equal(t, opcode.JumpForward, out[0].Kind)
	require.Equal(t, 1, out[0].Off)
	require.Equal(t, opcode.Add, out[1].Kind)
	require.Equal(t, 2, out[1].Off)
	require.Equal(t, opcode.Print, out[2].Kind)
	require.Equal(t, 1, out[2].Off)
	require.Equal(t, opcode.JumpBack, out[3].Kind)
	require.Equal(t, 1, out[3].Off)

	_, err := Finalize(out)
	require.NoError(t, err)
}

func TestFullPipelineAllLevelsPreserveBracketBalance(t *testing.T) {
	programs := []string{
		"++++++++[>++++++++<-]>+.",
		",[.,]",
		"+[-]+++++.",
		">+<[->+<]>.",
		"++>+++[<+>-]<.",
		"+[]",
	}
	for _, p := range programs {
		for level := L0; level <= L4; level++ {
			stream := mustParse(t, p)
			out := Run(stream, level)
			_, err := Finalize(out)
			require.NoErrorf(t, err, "program %q level %d", p, level)
		}
	}
}

func TestFinalizeUnmatchedJumpBack(t *testing.T) {
	stream := []opcode.Instruction{opcode.NewJumpBack(0)}
	_, err := Finalize(stream)
	require.Error(t, err)
}

func TestFinalizeUnmatchedJumpForward(t *testing.T) {
	stream := []opcode.Instruction{opcode.NewJumpForward(0)}
	_, err := Finalize(stream)
	require.Error(t, err)
}

func TestFinalizeComputesMaxOffset(t *testing.T) {
	stream := mustParse(t, ">+<")
	out := Run(stream, L4)
	maxOff, err := Finalize(out)
	require.NoError(t, err)
	require.Equal(t, 1, maxOff)
}
