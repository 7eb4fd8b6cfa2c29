package mach

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPerfmap_SizesEachEntryToTheNextFunctionStart(t *testing.T) {
	obj := &Object{
		Code:        make([]byte, 24),
		FuncOffsets: map[string]int{"first": 0, "second": 16},
	}

	pm := NewPerfmap(obj, 0x1000)
	require.Len(t, pm.entries, 2)
	require.Equal(t, uint64(0x1000), pm.entries[0].addr)
	require.Equal(t, uint64(16), pm.entries[0].size)
	require.Equal(t, "first", pm.entries[0].name)
	require.Equal(t, uint64(0x1010), pm.entries[1].addr)
	require.Equal(t, uint64(8), pm.entries[1].size)
	require.Equal(t, "second", pm.entries[1].name)
}

func TestPerfmap_FlushWritesPerfMapTextFormat(t *testing.T) {
	pm := &Perfmap{entries: []perfmapEntry{{addr: 0x1000, size: 16, name: "first"}}}
	var buf bytes.Buffer
	require.NoError(t, pm.Flush(&buf))
	require.Equal(t, "1000 10 first\n", buf.String())
}
