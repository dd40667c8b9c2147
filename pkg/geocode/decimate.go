package geocode

import "github.com/soundprediction/chronotope/pkg/types"

// MaxPolygonPoints caps the total vertex budget across all rings of a
// geometry. Large boundaries are decimated down to this budget so stored
// coordinate payloads stay small.
const MaxPolygonPoints = 20

// DecimatePolygons reduces every ring of the given polygons to a shared
// per-ring vertex cap. Returns ok=false when the geometry has no rings or
// has too many rings to represent within the budget; callers should fall
// back to a point in that case.
func DecimatePolygons(polygons [][][]types.Position) ([][][]types.Position, bool) {
	numRings := 0
	for _, poly := range polygons {
		numRings += len(poly)
	}
	if numRings == 0 {
		return nil, false
	}
	if numRings*4 > MaxPolygonPoints {
		return nil, false
	}

	perRingCap := MaxPolygonPoints / numRings
	if perRingCap < 4 {
		perRingCap = 4
	}

	simplified := make([][][]types.Position, len(polygons))
	for i, poly := range polygons {
		rings := make([][]types.Position, len(poly))
		for j, ring := range poly {
			rings[j] = decimateRing(ring, perRingCap)
		}
		simplified[i] = rings
	}
	return simplified, true
}

// decimateRing evenly samples a ring down to at most target vertices, always
// keeping the first vertex, then re-closes the ring.
func decimateRing(ring []types.Position, target int) []types.Position {
	unique := openRing(ring)
	n := len(unique)

	var out []types.Position
	if n <= max(4, target) {
		out = append(out, unique...)
	} else {
		step := float64(n) / float64(target)
		var indices []int
		for k := 0; len(indices) < target && float64(k)*step < float64(n); k++ {
			idx := int(float64(k) * step)
			if len(indices) == 0 || idx != indices[len(indices)-1] {
				indices = append(indices, idx)
			}
		}
		if len(indices) > target {
			indices = indices[:target]
		}
		for _, idx := range indices {
			out = append(out, unique[idx])
		}
	}

	// Close the ring
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// openRing strips the closing vertex so sampling operates on unique vertices.
func openRing(ring []types.Position) []types.Position {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}
