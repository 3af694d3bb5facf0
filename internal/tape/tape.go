// Package tape implements the page-guarded sandboxed tape (spec §4.4): a
// contiguous cell region flanked by no-access "danger zone" pages, with
// dynamic danger-zone growth and a process-wide fault handler that turns
// an out-of-bounds access into a controlled exit instead of memory
// corruption.
//
// The zero-length-is-a-bug contract on the mapping calls mirrors
// tetratelabs-wazero's internal/platform MmapCodeSegment/MunmapCodeSegment
// (see its mmap_test.go); the mapping itself is built directly on
// golang.org/x/sys/unix rather than reimplementing wazero's platform
// package, since the sandbox here additionally needs PROT_NONE guard
// pages, which code-segment mapping does not.
package tape

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/lcox74/bfjit/internal/diag"
	"github.com/lcox74/bfjit/internal/width"
)

var log = diag.WithComponent("tape")

// Sandbox is a contiguous mmap'd cell region flanked by left/right
// PROT_NONE danger zones.
type Sandbox struct {
	w         width.Width
	cellCount int
	pageSize  int

	mapping   []byte // the full mapping: left danger | cells | right danger
	danger    int     // danger-zone size in bytes (each side)
	cellsOff  int      // byte offset of the cell region within mapping
	ptr       int      // current cell index (0-based into the cell region)
}

var (
	activeMu     sync.Mutex
	activeBase   uintptr
	activeLen    int
)

// New allocates a sandbox with one page of danger zone on each side,
// sized for cellCount cells of the given width, with the cell pointer
// starting at startCell (spec §4.4 init).
func New(w width.Width, cellCount, startCell int) (*Sandbox, error) {
	if cellCount <= 0 {
		panic("tape: New with zero or negative cell count")
	}
	ps := unix.Getpagesize()
	s := &Sandbox{w: w, cellCount: cellCount, pageSize: ps}
	if err := s.remap(ps); err != nil {
		return nil, err
	}
	s.ptr = startCell
	return s, nil
}

// remap builds a fresh mapping with the given per-side danger-zone size in
// bytes (rounded up to whole pages), copying any existing cell contents
// across, and installs it as the process-wide active mapping.
func (s *Sandbox) remap(dangerBytes int) error {
	ps := s.pageSize
	danger := roundUp(dangerBytes, ps)
	if danger == 0 {
		danger = ps
	}
	cellBytes := roundUp(s.cellCount*s.w.Bytes(), ps)
	total := danger*2 + cellBytes

	mapping, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("tape: mmap %d bytes: %w", total, err)
	}

	if s.mapping != nil {
		copy(mapping[danger:danger+cellBytes], s.mapping[s.cellsOff:s.cellsOff+len(s.mapping)-2*s.danger])
		if err := unix.Munmap(s.mapping); err != nil {
			_ = unix.Munmap(mapping)
			return fmt.Errorf("tape: munmap old mapping: %w", err)
		}
	}

	if err := unix.Mprotect(mapping[:danger], unix.PROT_NONE); err != nil {
		return fmt.Errorf("tape: protect left danger zone: %w", err)
	}
	if err := unix.Mprotect(mapping[danger+cellBytes:], unix.PROT_NONE); err != nil {
		return fmt.Errorf("tape: protect right danger zone: %w", err)
	}

	s.mapping = mapping
	s.danger = danger
	s.cellsOff = danger

	publishActive(mapping)
	return nil
}

// Grow implements grow_danger_zone (spec §4.4): recomputes the required
// danger-zone size for maxCellOffset and, if larger than the current
// zones, remaps and copies cells across. Danger zones never shrink.
func (s *Sandbox) Grow(maxCellOffset int) error {
	required := maxCellOffset * s.w.Bytes()
	if required <= s.danger {
		return nil
	}
	log.WithField("bytes", required).Debug("growing danger zone")
	return s.remap(required)
}

// CheckPointer reports whether the current cell pointer lies within the
// writable cell range (spec §4.4 check_pointer).
func (s *Sandbox) CheckPointer() bool {
	return s.ptr >= 0 && s.ptr < s.cellCount
}

// Ptr returns the current cell index.
func (s *Sandbox) Ptr() int { return s.ptr }

// Move advances the cell pointer by delta cells. The pointer may land in
// a danger zone; PtrAt then yields an address that will fault on
// access, by design (spec §4.4: "wrapping integer arithmetic so
// out-of-range pointers land in a danger zone ... rather than undefined
// behavior").
func (s *Sandbox) Move(delta int) { s.ptr += delta }

// PtrAt returns a pointer to the cell at ptr+off, per-cell-width, using
// wrapping arithmetic over the whole mapping so an out-of-range offset
// still resolves to an address inside this mapping's danger zones.
func (s *Sandbox) PtrAt(off int) uintptr {
	stride := s.w.Bytes()
	byteOff := (s.ptr + off) * stride
	total := len(s.mapping)
	idx := wrapInt(s.cellsOff+byteOff, total)
	return uintptr(unsafePtr(s.mapping)) + uintptr(idx)
}

// Load reads the cell at ptr+off.
func (s *Sandbox) Load(off int) uint64 {
	stride := s.w.Bytes()
	idx := s.cellsOff + wrapInt((s.ptr+off)*stride, len(s.mapping)-s.cellsOff)
	return readWidth(s.mapping[idx:idx+stride], s.w)
}

// Store writes v into the cell at ptr+off, wrapping to the width.
func (s *Sandbox) Store(off int, v uint64) {
	stride := s.w.Bytes()
	idx := s.cellsOff + wrapInt((s.ptr+off)*stride, len(s.mapping)-s.cellsOff)
	writeWidth(s.mapping[idx:idx+stride], s.w, v)
}

// Release unmaps the sandbox and clears the active-mapping pointer.
func (s *Sandbox) Release() error {
	clearActive(s.mapping)
	if s.mapping == nil {
		return nil
	}
	m := s.mapping
	s.mapping = nil
	return unix.Munmap(m)
}

func roundUp(n, align int) int {
	if n <= 0 {
		return 0
	}
	return (n + align - 1) / align * align
}

func wrapInt(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func readWidth(b []byte, w width.Width) uint64 {
	var v uint64
	for i := 0; i < w.Bytes(); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func writeWidth(b []byte, w width.Width, v uint64) {
	for i := 0; i < w.Bytes(); i++ {
		b[i] = byte(v >> (8 * i))
	}
}
