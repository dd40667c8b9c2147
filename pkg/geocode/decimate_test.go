package geocode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope/pkg/geocode"
	"github.com/soundprediction/chronotope/pkg/types"
)

// ring builds a closed ring with n unique vertices.
func ring(n int) []types.Position {
	out := make([]types.Position, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, types.Position{float64(i), float64(i % 2)})
	}
	out = append(out, out[0])
	return out
}

func TestDecimatePolygonsSmallRingUnchanged(t *testing.T) {
	small := ring(5)
	out, ok := geocode.DecimatePolygons([][][]types.Position{{small}})
	require.True(t, ok)
	require.Len(t, out, 1)
	require.Len(t, out[0], 1)

	assert.Equal(t, small, out[0][0], "rings within budget pass through")
}

func TestDecimatePolygonsLargeRingSampled(t *testing.T) {
	large := ring(100)
	out, ok := geocode.DecimatePolygons([][][]types.Position{{large}})
	require.True(t, ok)

	got := out[0][0]
	assert.LessOrEqual(t, len(got), geocode.MaxPolygonPoints+1)
	assert.Equal(t, large[0], got[0], "first vertex kept")
	assert.Equal(t, got[0], got[len(got)-1], "ring re-closed")
}

func TestDecimatePolygonsSplitsBudgetAcrossRings(t *testing.T) {
	// Four rings share the 20-point budget, 5 per ring
	poly := [][]types.Position{ring(50), ring(50)}
	out, ok := geocode.DecimatePolygons([][][]types.Position{poly, poly})
	require.True(t, ok)

	for _, p := range out {
		for _, r := range p {
			// 5 unique vertices plus closing vertex
			assert.LessOrEqual(t, len(r), 6)
		}
	}
}

func TestDecimatePolygonsRejectsTooManyRings(t *testing.T) {
	var polygons [][][]types.Position
	for i := 0; i < 6; i++ {
		polygons = append(polygons, [][]types.Position{ring(10)})
	}
	_, ok := geocode.DecimatePolygons(polygons)
	assert.False(t, ok)
}

func TestDecimatePolygonsRejectsEmpty(t *testing.T) {
	_, ok := geocode.DecimatePolygons(nil)
	assert.False(t, ok)

	_, ok = geocode.DecimatePolygons([][][]types.Position{{}})
	assert.False(t, ok)
}
