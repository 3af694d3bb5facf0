// Package diag is the toolchain's single structured-logging surface
// (SPEC_FULL.md §2.1): branch-block padding warnings from the RV64
// relaxer, JIT code-unmap failures, and tape danger-zone growth notices.
// User-facing CLI errors, and the tape fault handler's "Reached end of
// tape" message, go straight to stderr; this package is for ambient
// diagnostics only.
package diag

import "github.com/sirupsen/logrus"

// Log is the package-level logger shared by the RV64 back-end, the JIT
// exec driver, and the tape sandbox.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// WithComponent returns an entry tagged with the emitting component, e.g.
// "jit/riscv" or "tape".
func WithComponent(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
