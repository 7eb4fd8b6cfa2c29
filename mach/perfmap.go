package mach

import (
	"io"
	"sort"

	"github.com/clifgen/wazevo-clif/arena"
)

// Perfmap accumulates one entry per compiled function, then flushes them in
// the `perf`/`/tmp/perf-<pid>.map` text format via arena.SymbolMap -- the
// same entries-plus-Flush accumulator the teacher's wazevoapi/perfmap.go
// populates once per compiled function during JIT compilation, reused here
// to format `clifc objdump --perfmap`'s one-shot dump of an already-linked
// Object instead of reimplementing the text format a second time.
type Perfmap struct {
	entries []perfmapEntry
}

type perfmapEntry struct {
	addr uint64
	size uint64
	name string
}

// NewPerfmap builds a Perfmap from a linked Object's function offsets,
// sizing each entry up to the next function's start (or the end of Code
// for the last one).
func NewPerfmap(obj *Object, loadAddr int64) *Perfmap {
	type fn struct {
		name string
		off  int
	}
	var fns []fn
	for name, off := range obj.FuncOffsets {
		fns = append(fns, fn{name, off})
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].off < fns[j].off })

	pm := &Perfmap{}
	for i, f := range fns {
		end := len(obj.Code)
		if i+1 < len(fns) {
			end = fns[i+1].off
		}
		pm.entries = append(pm.entries, perfmapEntry{addr: uint64(loadAddr + int64(f.off)), size: uint64(end - f.off), name: f.name})
	}
	return pm
}

// Flush writes every entry to w in perfmap format.
func (p *Perfmap) Flush(w io.Writer) error {
	sm := arena.NewSymbolMap(w)
	for _, e := range p.entries {
		sm.Add(e.addr, e.size, e.name)
	}
	return sm.Flush(0)
}
