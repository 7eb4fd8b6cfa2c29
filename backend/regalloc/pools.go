package regalloc

import "github.com/clifgen/wazevo-clif/arena"

// Pools holds the arena-backed allocators BuildLiveRanges and BuildBundles
// draw from for one function's regalloc pass. A caller compiling many
// functions in one run reuses a single Pools across all of them via Reset
// instead of letting each function's LiveRanges/LiveBundles leak to the GC.
type Pools struct {
	Ranges  arena.Pool[LiveRange]
	Bundles arena.Pool[LiveBundle]
}

// NewPools returns a ready-to-use Pools.
func NewPools() *Pools {
	return &Pools{Ranges: arena.NewPool[LiveRange](), Bundles: arena.NewPool[LiveBundle]()}
}

// Reset reclaims both pools' pages for the next function.
func (p *Pools) Reset() {
	p.Ranges.Reset()
	p.Bundles.Reset()
}
