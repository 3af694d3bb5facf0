// Package interp implements the direct bytecode interpreter (spec §4.3):
// a switch-dispatch loop over the instruction stream with wrapping cell
// arithmetic, an optional profiling context, and an optional instruction
// budget.
//
// The functional-options constructor and cached hot-loop locals follow
// the teacher's internal/vm/vm.go (VMOption, WithMemorySize/WithInput/...,
// RuntimeError), generalized over cell width and the extended opcode set.
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/lcox74/bfjit/internal/opcode"
	"github.com/lcox74/bfjit/internal/width"
)

// RuntimeError reports an interpreter failure at a given program counter.
type RuntimeError struct {
	Msg string
	Pos *opcode.Position
	PC  int
}

func (e *RuntimeError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("runtime error at PC %d (line %d, col %d): %s", e.PC, e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("runtime error at PC %d: %s", e.PC, e.Msg)
}

// EOFBehavior controls how Read handles end of input.
type EOFBehavior int

const (
	EOFZero EOFBehavior = iota
	EOFMinusOne
	EOFNoChange
)

// Profile accumulates the optional profiling context described in spec
// §4.3: per-PC execution counts and the min/max cell index and value
// observed during a run.
type Profile struct {
	PCCounts      []int
	MinCellIndex  int
	MaxCellIndex  int
	MinCellValue  uint64
	MaxCellValue  uint64
	touched       bool
}

func newProfile(numOps int) *Profile {
	return &Profile{PCCounts: make([]int, numOps)}
}

func (p *Profile) observeCell(idx int, v uint64) {
	if !p.touched {
		p.MinCellIndex, p.MaxCellIndex = idx, idx
		p.MinCellValue, p.MaxCellValue = v, v
		p.touched = true
		return
	}
	if idx < p.MinCellIndex {
		p.MinCellIndex = idx
	}
	if idx > p.MaxCellIndex {
		p.MaxCellIndex = idx
	}
	if v < p.MinCellValue {
		p.MinCellValue = v
	}
	if v > p.MaxCellValue {
		p.MaxCellValue = v
	}
}

// Interpreter executes an instruction stream directly.
type Interpreter struct {
	cellCount   int
	cellWidth   width.Width
	input       io.Reader
	output      io.Writer
	eofBehavior EOFBehavior
	profile     bool
	budget      int // 0 means unlimited

	cells  width.Cells
	ptr    int
	pc     int
	ioBuf  [1]byte
	Prof   *Profile // populated after Run iff WithProfile was set
}

// Option configures an Interpreter.
type Option func(*Interpreter)

func WithCellCount(n int) Option        { return func(i *Interpreter) { i.cellCount = n } }
func WithCellWidth(w width.Width) Option { return func(i *Interpreter) { i.cellWidth = w } }
func WithInput(r io.Reader) Option      { return func(i *Interpreter) { i.input = r } }
func WithOutput(w io.Writer) Option     { return func(i *Interpreter) { i.output = w } }
func WithEOFBehavior(b EOFBehavior) Option {
	return func(i *Interpreter) { i.eofBehavior = b }
}
func WithProfile() Option { return func(i *Interpreter) { i.profile = true } }

// WithInstructionBudget caps the number of steps Run executes; on
// exhaustion Run returns cleanly with no error (spec §7 InstructionLimit).
func WithInstructionBudget(n int) Option { return func(i *Interpreter) { i.budget = n } }

// New creates an Interpreter with the given options.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		cellCount:   30000,
		cellWidth:   width.W8,
		input:       os.Stdin,
		output:      os.Stdout,
		eofBehavior: EOFZero,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run executes stream to completion, to a fault, or to budget exhaustion.
func (v *Interpreter) Run(stream []opcode.Instruction) error {
	v.cells = width.NewCells(v.cellWidth, v.cellCount)
	v.ptr = 0
	v.pc = 0
	if v.profile {
		v.Prof = newProfile(len(stream))
	}

	cells := v.cells
	n := cells.Len()
	numOps := len(stream)
	steps := v.budget

	for v.pc < numOps {
		if v.budget > 0 {
			if steps <= 0 {
				return nil // InstructionLimit: clean return, no error (spec §7)
			}
			steps--
		}
		if v.Prof != nil {
			v.Prof.PCCounts[v.pc]++
		}

		ins := stream[v.pc]
		idx := wrap(v.ptr+ins.Off, n)

		switch ins.Kind {
		case opcode.Move:
			v.ptr += ins.Arg

		case opcode.Add:
			cells.Add(idx, int64(ins.Arg))
			if v.Prof != nil {
				v.Prof.observeCell(idx, cells.Get(idx))
			}

		case opcode.Set:
			cells.Set(idx, uint64(int64(ins.Arg)))
			if v.Prof != nil {
				v.Prof.observeCell(idx, cells.Get(idx))
			}

		case opcode.Mac:
			src := cells.Get(idx)
			dst := wrap(v.ptr+ins.MacOffset, n)
			cells.Add(dst, int64(src)*int64(ins.MacMultiplier))
			if v.Prof != nil {
				v.Prof.observeCell(dst, cells.Get(dst))
			}

		case opcode.Read:
			b, ok, err := v.readByte()
			if err != nil {
				return &RuntimeError{Msg: err.Error(), Pos: ins.Pos, PC: v.pc}
			}
			if ok {
				cells.Set(idx, uint64(b))
			}
			if v.Prof != nil {
				v.Prof.observeCell(idx, cells.Get(idx))
			}

		case opcode.Print:
			v.ioBuf[0] = byte(cells.Get(idx))
			if _, err := v.output.Write(v.ioBuf[:]); err != nil {
				return &RuntimeError{Msg: fmt.Sprintf("output error: %v", err), Pos: ins.Pos, PC: v.pc}
			}

		case opcode.JumpForward:
			if cells.Get(idx) == 0 {
				v.pc = ins.Arg
				continue
			}

		case opcode.JumpBack:
			if cells.Get(idx) != 0 {
				v.pc = ins.Arg
				continue
			}
		}

		v.pc++
	}

	return nil
}

// Cell0 returns the current value of cell 0, used by tests to check the
// "final cell 0" column of the spec's end-to-end scenario table.
func (v *Interpreter) Cell0() uint64 { return v.cells.Get(0) }

// readByte returns the next input byte, or at end of input the byte the
// configured EOFBehavior stores; ok is false when the cell is to be left
// unchanged (EOFNoChange).
func (v *Interpreter) readByte() (b byte, ok bool, err error) {
	n, err := v.input.Read(v.ioBuf[:])
	if err == io.EOF || n == 0 {
		switch v.eofBehavior {
		case EOFZero:
			return 0, true, nil
		case EOFMinusOne:
			return 0xFF, true, nil
		default:
			return 0, false, nil
		}
	}
	if err != nil {
		return 0, false, err
	}
	return v.ioBuf[0], true, nil
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
