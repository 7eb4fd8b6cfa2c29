package diag

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newCapturingTrace(t *testing.T) (*Trace, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return NewTrace(log), &buf
}

func TestTrace_PassStartedAndFinishedLogFuncAndPassFields(t *testing.T) {
	tr, buf := newCapturingTrace(t)
	tr.PassStarted("add", "lowering")
	tr.PassFinished("add", "lowering", 12*time.Microsecond)

	out := buf.String()
	require.Contains(t, out, "func=add")
	require.Contains(t, out, "pass=lowering")
	require.Contains(t, out, "pass started")
	require.Contains(t, out, "pass finished")
}

func TestTrace_SpillDecisionAndRequirementConflictLogBundleID(t *testing.T) {
	tr, buf := newCapturingTrace(t)
	tr.SpillDecision("sum9", 3, "no free register in class")
	tr.RequirementConflict("sum9", 3)

	out := buf.String()
	require.Contains(t, out, "bundle=3")
	require.Contains(t, out, "spill decision")
	require.Contains(t, out, "requirement conflict")
}

func TestTrace_FatalErrorIncludesWrappedError(t *testing.T) {
	tr, buf := newCapturingTrace(t)
	tr.FatalError("divrem", errors.New("boom"))
	require.Contains(t, buf.String(), "boom")
}

func TestNopTrace_DoesNotPanicAndWritesNothingObservable(t *testing.T) {
	tr := NopTrace()
	require.NotPanics(t, func() {
		tr.PassStarted("f", "p")
		tr.VeneerInserted("f", 10, "arm64_branch26")
		tr.TrampolineInserted("g", 2048)
		tr.TrapRecorded("f", 4, "integer_division_by_zero")
	})
}
