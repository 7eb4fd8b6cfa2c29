// Package diag is the compiler's sole logging boundary. spec.md's core
// packages (ssa, frontend, backend, backend/regalloc, backend/isa/*, mach)
// never import logrus or write to a logger directly -- a library must not
// log on a caller's behalf. Instead each pass that wants to report a
// diagnostic (pass timing, a regalloc spill decision, a veneer insertion)
// takes a *diag.Trace and calls one of its methods; cmd/clifc is the only
// caller that constructs a real, logrus-backed Trace. Tests and other
// embedders can pass NopTrace() to opt out of logging entirely at zero
// cost.
package diag

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Trace receives structured diagnostic events from the compilation
// pipeline. Every method writes through the logger the Trace was built
// with, so a Trace must come from NewTrace or NopTrace (whose logger is a
// discarding logrus.Logger); a nil *Trace or a zero Trace panics.
type Trace struct {
	log *logrus.Logger
}

// NewTrace returns a Trace that writes through log.
func NewTrace(log *logrus.Logger) *Trace {
	return &Trace{log: log}
}

// NopTrace returns a Trace that discards every event; used by package
// tests and any embedder that wants the pipeline to run silently.
func NopTrace() *Trace {
	l := logrus.New()
	l.SetOutput(discard{})
	return &Trace{log: l}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// PassStarted logs the start of a named compilation pass (lowering,
// regalloc, emission) for one function.
func (t *Trace) PassStarted(funcName, pass string) {
	t.log.WithFields(logrus.Fields{"func": funcName, "pass": pass}).Debug("pass started")
}

// PassFinished logs a named pass's completion and wall-clock duration.
func (t *Trace) PassFinished(funcName, pass string, dur time.Duration) {
	t.log.WithFields(logrus.Fields{"func": funcName, "pass": pass, "duration": dur}).Debug("pass finished")
}

// SpillDecision logs the allocator choosing to spill a bundle rather than
// keep it in a register. Bundles are spilled whole; none is ever split.
func (t *Trace) SpillDecision(funcName string, bundleID int, reason string) {
	t.log.WithFields(logrus.Fields{"func": funcName, "bundle": bundleID, "reason": reason}).Info("spill decision")
}

// RequirementConflict logs a register-allocation failure caused by a
// requirement conflict (bundleID is -1 when the failing bundle is not
// known). No bundle is split and nothing is retried: the conflict ends
// compilation of the function.
func (t *Trace) RequirementConflict(funcName string, bundleID int) {
	t.log.WithFields(logrus.Fields{"func": funcName, "bundle": bundleID}).Warn("requirement conflict")
}

// VeneerInserted logs an island/veneer flushed during emission because a
// pending branch's deadline was about to be violated (spec.md §4.4).
func (t *Trace) VeneerInserted(funcName string, offset int, kind string) {
	t.log.WithFields(logrus.Fields{"func": funcName, "offset": offset, "kind": kind}).Info("veneer inserted")
}

// TrampolineInserted logs a mach.Link call-trampoline island, keyed by the
// callee it serves (spec.md §4.4's generalization to link-time).
func (t *Trace) TrampolineInserted(callee string, islandOffset int) {
	t.log.WithFields(logrus.Fields{"callee": callee, "island_offset": islandOffset}).Info("call trampoline inserted")
}

// TrapRecorded logs a MachTrap site recorded during lowering or emission.
func (t *Trace) TrapRecorded(funcName string, offset int, code string) {
	t.log.WithFields(logrus.Fields{"func": funcName, "offset": offset, "code": code}).Debug("trap recorded")
}

// FatalError logs a spec.md §7 fatal error before it propagates to the
// caller, so a CLI run leaves a record even when it exits non-zero.
func (t *Trace) FatalError(funcName string, err error) {
	t.log.WithFields(logrus.Fields{"func": funcName}).WithError(err).Error("fatal compilation error")
}
