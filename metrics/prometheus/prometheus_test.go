package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/thread"
)

// gather returns the summed counter or gauge value of every family.
func gather(t *testing.T, reg *prom.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[mf.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	mc, err := NewCollector(reg, "young")
	require.NoError(t, err)

	s, err := bumpspace.New("young", 64<<10,
		bumpspace.WithMetricsCollector(mc),
		bumpspace.WithLiveShrink(true),
	)
	require.NoError(t, err)
	defer s.Close()

	th := thread.New(1, "T1")
	_, ok := s.AllocNewTLAB(th, 4096)
	require.True(t, ok)
	for range 3 {
		addr, ok := th.AllocTLAB(64)
		require.True(t, ok)
		object.Header{}.Init(s.Pointer(addr), 1, 64)
	}
	_, ok = s.AllocNewTLAB(th, 1<<20)
	require.False(t, ok)

	s.Walk(func(object.Object) {})
	newCap := s.ClampGrowthLimit(32 << 10)
	require.NoError(t, s.Clear())

	got := gather(t, reg)
	assert.Equal(t, 2.0, got["bumpspace_tlab_refreshes_total"])
	assert.Equal(t, 4096.0, got["bumpspace_tlab_bytes_total"])
	assert.Equal(t, 1.0, got["bumpspace_revokes_total"])
	assert.Equal(t, 3.0, got["bumpspace_revoked_objects_total"])
	assert.Equal(t, 1.0, got["bumpspace_walk_duration_seconds"])
	assert.Equal(t, 3.0, got["bumpspace_walked_objects_total"], "revocation keeps objects walkable")
	assert.Equal(t, 1.0, got["bumpspace_clears_total"])
	assert.Equal(t, float64(newCap), got["bumpspace_clamped_capacity_bytes"])
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := NewCollector(reg, "a")
	require.NoError(t, err)
	_, err = NewCollector(reg, "a")
	assert.Error(t, err)
}
