package tape

import (
	"os"
	"os/signal"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lcox74/bfjit/internal/bferr"
)

// handlerOnce installs the process-wide fault handler exactly once (spec
// §4.4 "a single handler per process, registered once at startup").
var handlerOnce sync.Once

// InstallFaultHandler registers the one-shot process-wide handler for
// SIGSEGV/SIGBUS. When a signal arrives while a tape is the active
// mapping, it prints a warning and exits the process with status 1 (spec
// §4.4, §7 TapeOverrun); otherwise it restores the default disposition
// and re-raises.
//
// Go cannot intercept a true hardware fault address without cgo; this is
// a documented approximation (see DESIGN.md "Open questions resolved"):
// a synchronous SIGSEGV/SIGBUS arriving while exactly one tape is
// published as active (spec §5's single-active-tape invariant) is
// treated as a fault inside that mapping.
func InstallFaultHandler() {
	handlerOnce.Do(func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, unix.SIGSEGV, unix.SIGBUS)
		go func() {
			for range c {
				handleFault()
			}
		}()
	})
}

func handleFault() {
	activeMu.Lock()
	active := activeBase != 0
	activeMu.Unlock()

	if active {
		os.Stderr.WriteString("Reached end of tape\n")
		os.Exit(1)
	}

	// No active tape: this signal is not ours. Restore default
	// disposition and re-raise so other handlers/the runtime see it.
	signal.Reset(unix.SIGSEGV, unix.SIGBUS)
	_ = unix.Kill(os.Getpid(), unix.SIGSEGV)
}

func publishActive(mapping []byte) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if len(mapping) == 0 {
		activeBase, activeLen = 0, 0
		return
	}
	activeBase = uintptr(unsafePtr(mapping))
	activeLen = len(mapping)
}

func clearActive(mapping []byte) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if unsafePtr(mapping) != nil && uintptr(unsafePtr(mapping)) == activeBase {
		activeBase, activeLen = 0, 0
	}
}

// FaultWithin reports whether addr lies within the currently active
// mapping, including its danger zones (spec §4.4 fault-handler contract).
func FaultWithin(addr uintptr) bool {
	activeMu.Lock()
	defer activeMu.Unlock()
	if activeBase == 0 {
		return false
	}
	return addr >= activeBase && addr < activeBase+uintptr(activeLen)
}

func unsafePtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// TapeOverrun constructs the terminal error for an observed fault, for
// callers that want to surface it as a normal error value rather than
// exiting directly (e.g. tests running the sandbox in a subprocess).
func TapeOverrun(msg string) *bferr.Error {
	return &bferr.Error{Kind: bferr.TapeOverrun, Msg: msg}
}
