package arena

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_allocateAndView(t *testing.T) {
	p := NewPool[int]()
	var got []*int
	for i := 0; i < poolPageSize*2+3; i++ {
		v := p.Allocate()
		*v = i
		got = append(got, v)
	}
	require.Equal(t, poolPageSize*2+3, p.Allocated())
	for i, v := range got {
		require.Equal(t, i, *v)
		require.Equal(t, v, p.View(i))
	}
}

func TestPool_resetZeroesAndReclaims(t *testing.T) {
	p := NewPool[int]()
	v := p.Allocate()
	*v = 99
	p.Reset()
	require.Equal(t, 0, p.Allocated())
	v2 := p.Allocate()
	require.Equal(t, 0, *v2)
}

func TestSymbolMap_flush(t *testing.T) {
	var buf bytes.Buffer
	m := NewSymbolMap(&buf)
	m.Add(0x10, 0x20, "foo")
	m.Add(0x40, 0x8, "bar")
	require.NoError(t, m.Flush(0x1000))
	require.Equal(t, "1010 20 foo\n1040 8 bar\n", buf.String())
	require.Empty(t, m.entries)
}
