// Package arena provides the pooled-allocation and symbol-emission helpers
// shared by the compiler's hot paths: regalloc's live ranges and bundles come
// from a Pool instead of individual heap allocations.
package arena

const poolPageSize = 128

type page[T any] [poolPageSize]T

// Pool hands out *T backed by fixed-size pages instead of one growing slice,
// so a pointer returned by Allocate stays valid even as later Allocate calls
// grow the pool -- a plain append-growing slice would reallocate its backing
// array and invalidate every pointer already handed out.
type Pool[T any] struct {
	pages     []*page[T]
	allocated int
	cursor    int
}

// NewPool returns a ready-to-use Pool.
func NewPool[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocated returns the number of T handed out since the last Reset.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Allocate returns a fresh, zeroed *T.
func (p *Pool[T]) Allocate() *T {
	if p.cursor == poolPageSize {
		p.growPage()
		p.cursor = 0
	}
	t := &p.pages[len(p.pages)-1][p.cursor]
	p.cursor++
	p.allocated++
	return t
}

// growPage appends a fresh page, reusing a page backing array left over
// from before the last Reset when one is still sitting at this slot.
func (p *Pool[T]) growPage() {
	if n := len(p.pages); n < cap(p.pages) {
		p.pages = p.pages[:n+1]
		if p.pages[n] == nil {
			p.pages[n] = new(page[T])
		}
		return
	}
	p.pages = append(p.pages, new(page[T]))
}

// View returns the pointer to the i-th allocated item, in allocation order.
func (p *Pool[T]) View(i int) *T {
	return &p.pages[i/poolPageSize][i%poolPageSize]
}

// Reset reclaims every page for the next compilation. Only the slots that
// actually held a value this cycle are zeroed, so a stale pointer from a
// finished compilation never leaks into the next one through leftover data
// in a page's unused tail.
func (p *Pool[T]) Reset() {
	var zero T
	remaining := p.allocated
	for _, pg := range p.pages {
		n := poolPageSize
		if remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			pg[i] = zero
		}
		remaining -= n
	}
	p.pages = p.pages[:0]
	p.cursor = poolPageSize
	p.allocated = 0
}
