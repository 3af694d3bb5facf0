// Package width implements cell-width polymorphism (spec §3, §9): cells are
// unsigned integers of 8, 16, 32, or 64 bits with wrapping arithmetic.
//
// The open question in spec.md §9 ("instantiate four times, or dispatch at
// runtime") is resolved here as runtime dispatch through the Cells
// interface, selected once by NewCells for the configured width.
package width

import "fmt"

// Width is the configured cell size in bits.
type Width int

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

func (w Width) String() string { return fmt.Sprintf("c%d", int(w)) }

// Valid reports whether w is one of the four supported cell widths.
func (w Width) Valid() bool {
	switch w {
	case W8, W16, W32, W64:
		return true
	}
	return false
}

// Bytes returns sizeof(cell) for this width, used to size danger zones.
func (w Width) Bytes() int { return int(w) / 8 }

// Cells is a flat array of cells of a fixed, wrapping integer width. All
// arithmetic performed through this interface wraps modulo 2^w.
type Cells interface {
	Len() int
	Get(i int) uint64
	Set(i int, v uint64)
	Add(i int, delta int64)
	Width() Width
}

// NewCells allocates a Cells backing array of the given width and length.
func NewCells(w Width, n int) Cells {
	switch w {
	case W8:
		return &cells8{buf: make([]uint8, n)}
	case W16:
		return &cells16{buf: make([]uint16, n)}
	case W32:
		return &cells32{buf: make([]uint32, n)}
	case W64:
		return &cells64{buf: make([]uint64, n)}
	default:
		panic(fmt.Sprintf("width: unsupported cell width %d", int(w)))
	}
}

type cells8 struct{ buf []uint8 }

func (c *cells8) Len() int             { return len(c.buf) }
func (c *cells8) Get(i int) uint64     { return uint64(c.buf[i]) }
func (c *cells8) Set(i int, v uint64)  { c.buf[i] = uint8(v) }
func (c *cells8) Add(i int, d int64)   { c.buf[i] = uint8(int64(c.buf[i]) + d) }
func (c *cells8) Width() Width         { return W8 }

type cells16 struct{ buf []uint16 }

func (c *cells16) Len() int            { return len(c.buf) }
func (c *cells16) Get(i int) uint64    { return uint64(c.buf[i]) }
func (c *cells16) Set(i int, v uint64) { c.buf[i] = uint16(v) }
func (c *cells16) Add(i int, d int64)  { c.buf[i] = uint16(int64(c.buf[i]) + d) }
func (c *cells16) Width() Width        { return W16 }

type cells32 struct{ buf []uint32 }

func (c *cells32) Len() int            { return len(c.buf) }
func (c *cells32) Get(i int) uint64    { return uint64(c.buf[i]) }
func (c *cells32) Set(i int, v uint64) { c.buf[i] = uint32(v) }
func (c *cells32) Add(i int, d int64)  { c.buf[i] = uint32(int64(c.buf[i]) + d) }
func (c *cells32) Width() Width        { return W32 }

type cells64 struct{ buf []uint64 }

func (c *cells64) Len() int            { return len(c.buf) }
func (c *cells64) Get(i int) uint64    { return c.buf[i] }
func (c *cells64) Set(i int, v uint64) { c.buf[i] = v }
func (c *cells64) Add(i int, d int64)  { c.buf[i] = uint64(int64(c.buf[i]) + d) }
func (c *cells64) Width() Width        { return W64 }
