package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Append(t *testing.T) {
	l := New()
	assert.True(t, l.Empty())
	assert.Equal(t, uint64(1), l.Generation())

	assert.Equal(t, 0, l.Append(4096))
	assert.Equal(t, 1, l.Append(1024))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, uintptr(5120), l.Sum())
	assert.Equal(t, uintptr(1024), l.At(1))
}

func TestLedger_Grow(t *testing.T) {
	l := New()
	assert.Panics(t, func() { l.Grow(8) })

	l.Append(64)
	l.Append(64)
	l.Grow(16)

	assert.Equal(t, uintptr(80), l.At(1))
	assert.Equal(t, uintptr(144), l.Sum())
}

func TestLedger_Snapshot(t *testing.T) {
	l := New()
	l.Append(8)
	l.Append(16)

	snap := l.Snapshot()
	l.Append(32)
	l.Grow(8)

	assert.Equal(t, []uintptr{8, 16}, snap.Sizes)
	assert.Equal(t, uintptr(24), snap.Sum())
	assert.Equal(t, l.Generation(), snap.Generation)
}

func TestLedger_Truncate(t *testing.T) {
	t.Run("prefix", func(t *testing.T) {
		l := New()
		for _, n := range []uintptr{8, 16, 32, 64} {
			l.Append(n)
		}
		gen := l.Generation()

		require.NoError(t, l.Truncate(2))
		assert.Equal(t, 2, l.Len())
		assert.Equal(t, uintptr(96), l.Sum())
		assert.Equal(t, uintptr(32), l.At(0))
		assert.Equal(t, []uintptr{32, 64}, l.Snapshot().Sizes)
		assert.Greater(t, l.Generation(), gen)
	})

	t.Run("everything", func(t *testing.T) {
		l := New()
		l.Append(8)
		require.NoError(t, l.Truncate(1))
		assert.True(t, l.Empty())
		assert.Zero(t, l.Sum())

		l.Append(24)
		assert.Equal(t, uintptr(24), l.At(0))
	})

	t.Run("zero is a no-op", func(t *testing.T) {
		l := New()
		l.Append(8)
		gen := l.Generation()
		require.NoError(t, l.Truncate(0))
		assert.Equal(t, gen, l.Generation())
	})

	t.Run("out of range", func(t *testing.T) {
		l := New()
		l.Append(8)
		assert.Error(t, l.Truncate(2))
		assert.Error(t, l.Truncate(-1))
	})

	t.Run("compaction keeps order", func(t *testing.T) {
		l := New()
		for i := 0; i < compactThreshold+10; i++ {
			l.Append(uintptr(i+1) * 8)
		}
		require.NoError(t, l.Truncate(compactThreshold))
		assert.Equal(t, 10, l.Len())
		assert.Equal(t, uintptr(compactThreshold+1)*8, l.At(0))
	})
}

func TestLedger_Reset(t *testing.T) {
	l := New()
	l.Append(8)
	gen := l.Generation()

	l.Reset()
	assert.True(t, l.Empty())
	assert.Zero(t, l.Sum())
	assert.Greater(t, l.Generation(), gen)
}
