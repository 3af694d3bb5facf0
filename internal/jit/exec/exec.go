// Package exec implements the architecture-neutral compile driver and
// calling-convention abstraction (spec §4.5, §9 "Calling convention
// abstraction"): the same execute shell drives either the x86-64 SysV or
// the RV64-C back-end by parameterizing over a CallConv tag.
//
// Native invocation and the C-ABI read/print callback pointers are built
// on github.com/ebitengine/purego (no cgo required), per SPEC_FULL.md §3.
package exec

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ebitengine/purego"

	"github.com/lcox74/bfjit/internal/bferr"
	"github.com/lcox74/bfjit/internal/diag"
)

var log = diag.WithComponent("jit/exec")

// CallConv tags which host calling convention the compiled function uses.
// x86-64 uses SysV (rdi/rsi/rdx -> rax); RV64 uses the GNU convention
// (a0/a1/a2 -> a0). Both pass (cell pointer, read callback, print
// callback) and return the final cell pointer (spec §4.5).
type CallConv int

const (
	SysV CallConv = iota
	RV64C
)

// Arch identifies a JIT back-end target.
type Arch int

const (
	ArchX86_64 Arch = iota
	ArchRV64
	ArchUnsupported
)

// HostArch maps runtime.GOARCH to a back-end selection (spec §4.5
// "selects a back-end by host architecture").
func HostArch() Arch {
	switch runtime.GOARCH {
	case "amd64":
		return ArchX86_64
	case "riscv64":
		return ArchRV64
	default:
		return ArchUnsupported
	}
}

// ReadFunc supplies one input byte to the compiled code.
type ReadFunc func() byte

// PrintFunc consumes one output byte from the compiled code.
type PrintFunc func(byte)

// Run maps code as RW, copies it in, flips it to RX (W^X, spec §5), calls
// through with the tape pointer and the read/print callbacks, and returns
// the updated cell pointer. The mapping is unmapped before Run returns,
// matching the compile driver's ownership contract (spec §4.5, §5
// "Shared resources").
func Run(code []byte, conv CallConv, cellPtr uintptr, read ReadFunc, print PrintFunc) (uintptr, error) {
	if len(code) == 0 {
		panic("exec: Run with zero-length code")
	}

	mapping, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("exec: mmap code: %w", err)
	}
	copy(mapping, code)

	if err := unix.Mprotect(mapping, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mapping)
		return 0, fmt.Errorf("exec: mprotect RX: %w", err)
	}
	defer func() {
		if uerr := unix.Munmap(mapping); uerr != nil {
			log.WithError(uerr).Warn("failed to unmap JIT code buffer")
		}
	}()

	readCb := purego.NewCallback(read)
	printCb := purego.NewCallback(print)

	entry := uintptr(unsafePtr(mapping))

	switch conv {
	case SysV, RV64C:
		ret, _, _ := purego.SyscallN(entry, cellPtr, readCb, printCb)
		return ret, nil
	default:
		return 0, &bferr.Error{Kind: bferr.UnsupportedArchitecture, Msg: "unknown calling convention"}
	}
}

func unsafePtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
