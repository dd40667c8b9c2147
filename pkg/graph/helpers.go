package graph

import (
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/chronotope/pkg/types"
)

func nodeProps(v any) map[string]any {
	if node, ok := v.(dbtype.Node); ok {
		return node.Props
	}
	return map[string]any{}
}

func toStringPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nodeIDs extracts the non-empty id properties from a collected node list,
// keeping order and dropping duplicates.
func nodeIDs(v any) []string {
	items, _ := v.([]any)
	out := []string{}
	seen := map[string]struct{}{}
	for _, item := range items {
		id, ok := nodeProps(item)["id"].(string)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// coordinateValue converts a stored coordinates property to a JSON-friendly
// value: points become [lon, lat], polygon JSON strings pass through.
func coordinateValue(v any) any {
	switch coords := v.(type) {
	case dbtype.Point2D:
		return []float64{coords.X, coords.Y}
	case string:
		return coords
	default:
		return nil
	}
}

// intervalFromStored rebuilds a temporal interval from the map shape the
// store collects per context. A fully null entry (produced by the OPTIONAL
// MATCH when a hyperedge has no contexts) is skipped.
func intervalFromStored(v any) (types.TemporalInterval, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return types.TemporalInterval{}, false
	}
	start := toStringPtr(m["start_time"])
	end := toStringPtr(m["end_time"])
	if start == nil && end == nil {
		return types.TemporalInterval{}, false
	}
	return types.TemporalInterval{StartTime: start, EndTime: end}, true
}

// spatialFromStored rebuilds a spatial context from its stored form: point
// coordinates come back as a native point value, polygons as their JSON
// string.
func spatialFromStored(v any) (types.SpatialContext, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return types.SpatialContext{}, false
	}
	name, _ := m["name"].(string)
	geomType, _ := m["type"].(string)
	if name == "" && geomType == "" {
		return types.SpatialContext{}, false
	}

	sc := types.SpatialContext{Name: name, Type: geomType}
	switch coords := m["coordinates"].(type) {
	case dbtype.Point2D:
		pt := types.Position{coords.X, coords.Y}
		sc.Point = &pt
	case string:
		switch geomType {
		case types.GeometryPolygon:
			_ = json.Unmarshal([]byte(coords), &sc.Polygon)
		case types.GeometryMultiPolygon:
			_ = json.Unmarshal([]byte(coords), &sc.MultiPolygon)
		}
	}
	return sc, true
}
