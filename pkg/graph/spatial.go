package graph

import (
	"encoding/json"
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/chronotope/pkg/types"
)

// pointInPolygon is the standard ray casting test on [lon, lat] pairs.
func pointInPolygon(point types.Position, polygon []types.Position) bool {
	if len(polygon) < 3 {
		return false
	}

	x, y := point.Lon(), point.Lat()
	inside := false

	p1 := polygon[0]
	n := len(polygon)
	for i := 1; i <= n; i++ {
		p2 := polygon[i%n]
		if y > math.Min(p1.Lat(), p2.Lat()) && y <= math.Max(p1.Lat(), p2.Lat()) && x <= math.Max(p1.Lon(), p2.Lon()) {
			xinters := math.Inf(1)
			if p1.Lat() != p2.Lat() {
				xinters = (y-p1.Lat())*(p2.Lon()-p1.Lon())/(p2.Lat()-p1.Lat()) + p1.Lon()
			}
			if p1.Lon() == p2.Lon() || x <= xinters {
				inside = !inside
			}
		}
		p1 = p2
	}
	return inside
}

func boundingBoxesOverlap(poly1, poly2 []types.Position) bool {
	if len(poly1) == 0 || len(poly2) == 0 {
		return false
	}
	minLon1, maxLon1 := poly1[0].Lon(), poly1[0].Lon()
	minLat1, maxLat1 := poly1[0].Lat(), poly1[0].Lat()
	for _, p := range poly1[1:] {
		minLon1 = math.Min(minLon1, p.Lon())
		maxLon1 = math.Max(maxLon1, p.Lon())
		minLat1 = math.Min(minLat1, p.Lat())
		maxLat1 = math.Max(maxLat1, p.Lat())
	}
	minLon2, maxLon2 := poly2[0].Lon(), poly2[0].Lon()
	minLat2, maxLat2 := poly2[0].Lat(), poly2[0].Lat()
	for _, p := range poly2[1:] {
		minLon2 = math.Min(minLon2, p.Lon())
		maxLon2 = math.Max(maxLon2, p.Lon())
		minLat2 = math.Min(minLat2, p.Lat())
		maxLat2 = math.Max(maxLat2, p.Lat())
	}
	return !(maxLon1 < minLon2 || maxLon2 < minLon1 || maxLat1 < minLat2 || maxLat2 < minLat1)
}

func ccw(a, b, c types.Position) bool {
	return (c.Lat()-a.Lat())*(b.Lon()-a.Lon()) > (b.Lat()-a.Lat())*(c.Lon()-a.Lon())
}

func edgesIntersect(a, b, c, d types.Position) bool {
	return ccw(a, c, d) != ccw(b, c, d) && ccw(a, b, c) != ccw(a, b, d)
}

// polygonsIntersect tests two rings with a bounding box reject, mutual point
// containment, and pairwise edge intersection.
func polygonsIntersect(poly1, poly2 []types.Position) bool {
	if len(poly1) < 3 || len(poly2) < 3 {
		return false
	}
	if !boundingBoxesOverlap(poly1, poly2) {
		return false
	}

	for _, p := range poly1 {
		if pointInPolygon(p, poly2) {
			return true
		}
	}
	for _, p := range poly2 {
		if pointInPolygon(p, poly1) {
			return true
		}
	}

	for i := range poly1 {
		e1s, e1e := poly1[i], poly1[(i+1)%len(poly1)]
		for j := range poly2 {
			if edgesIntersect(e1s, e1e, poly2[j], poly2[(j+1)%len(poly2)]) {
				return true
			}
		}
	}
	return false
}

// spatialIntersects tests a stored context geometry against a user-supplied
// polygon. Points arrive as native point values; polygons and multipolygons
// as their stored JSON string, of which only the outer rings are tested.
func spatialIntersects(coords any, spatialType string, userPolygon []types.Position) bool {
	if coords == nil || len(userPolygon) < 3 {
		return false
	}

	switch spatialType {
	case types.GeometryPoint:
		pt, ok := coords.(dbtype.Point2D)
		if !ok {
			return false
		}
		return pointInPolygon(types.Position{pt.X, pt.Y}, userPolygon)

	case types.GeometryPolygon:
		raw, ok := coords.(string)
		if !ok {
			return false
		}
		var rings [][]types.Position
		if err := json.Unmarshal([]byte(raw), &rings); err != nil || len(rings) == 0 {
			return false
		}
		return polygonsIntersect(rings[0], userPolygon)

	case types.GeometryMultiPolygon:
		raw, ok := coords.(string)
		if !ok {
			return false
		}
		var polys [][][]types.Position
		if err := json.Unmarshal([]byte(raw), &polys); err != nil {
			return false
		}
		for _, rings := range polys {
			if len(rings) > 0 && polygonsIntersect(rings[0], userPolygon) {
				return true
			}
		}
		return false

	default:
		return false
	}
}
