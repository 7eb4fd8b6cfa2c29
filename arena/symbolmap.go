package arena

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// SymbolMapEnabled gates whether compiled functions register themselves
// with the process-wide SymbolMap (SUPPLEMENTED FEATURE: a perf-style
// symbol map lets `perf report`/`objdump` resolve addresses in JIT'd or
// ahead-of-time-emitted buffers back to function names).
var SymbolMapEnabled bool

// DefaultSymbolMap is populated lazily by EnableDefaultSymbolMap, writing to
// /tmp/perf-<pid>.map in the format `perf inject`/`perf report --input`
// expects for externally-mapped code.
var DefaultSymbolMap *SymbolMap

// EnableDefaultSymbolMap opens /tmp/perf-<pid>.map and installs it as
// DefaultSymbolMap; SymbolMapEnabled must also be set for callers that check
// it before recording entries.
func EnableDefaultSymbolMap() error {
	pid := os.Getpid()
	filename := "/tmp/perf-" + strconv.Itoa(pid) + ".map"
	fh, err := os.OpenFile(filename, os.O_APPEND|os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	DefaultSymbolMap = &SymbolMap{w: fh}
	return nil
}

type symbolEntry struct {
	addr uint64
	size uint64
	name string
}

// SymbolMap accumulates (address, size, name) triples for emitted code and
// flushes them in perf's two-column-hex-plus-name map format.
type SymbolMap struct {
	entries []symbolEntry
	w       io.Writer
}

// NewSymbolMap returns a SymbolMap writing to w (a file, or a buffer in
// tests).
func NewSymbolMap(w io.Writer) *SymbolMap { return &SymbolMap{w: w} }

// Add records one compiled function's address range.
func (m *SymbolMap) Add(addr, size uint64, name string) {
	m.entries = append(m.entries, symbolEntry{addr, size, name})
}

// Clear drops every recorded entry without touching the underlying writer.
func (m *SymbolMap) Clear() { m.entries = m.entries[:0] }

// Flush writes every entry, with base added to each address (the load
// address of the MachBuffer within the final mapped image), and clears the
// map on success.
func (m *SymbolMap) Flush(base uint64) error {
	for _, e := range m.entries {
		if _, err := fmt.Fprintf(m.w, "%x %s %s\n", e.addr+base, strconv.FormatUint(e.size, 16), e.name); err != nil {
			return err
		}
	}
	if f, ok := m.w.(*os.File); ok {
		_ = f.Sync()
	}
	m.Clear()
	return nil
}
