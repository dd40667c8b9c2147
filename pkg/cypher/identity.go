package cypher

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/soundprediction/chronotope/pkg/types"
)

// PolygonJSONLimit is the byte cap on a stored polygon JSON string.
// Geometries above it degrade to null coordinates.
const PolygonJSONLimit = 200000

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// CoordinateSignature derives the stable signature of a geometry for identity
// hashing. Points sign as "pt:<lon>:<lat>" with both components rounded to
// six decimal places; other geometries sign as "geo:" plus a hash of their
// minified JSON form. A context with no resolvable geometry signs as the
// null token.
func CoordinateSignature(sc *types.SpatialContext) string {
	if sc == nil {
		return NullToken
	}
	switch sc.Type {
	case types.GeometryPoint:
		if sc.Point == nil {
			return NullToken
		}
		lon := strconv.FormatFloat(round6(sc.Point.Lon()), 'f', -1, 64)
		lat := strconv.FormatFloat(round6(sc.Point.Lat()), 'f', -1, 64)
		return "pt:" + lon + ":" + lat
	case types.GeometryPolygon, types.GeometryMultiPolygon:
		raw, err := sc.CoordinateJSON()
		if err != nil {
			return NullToken
		}
		return "geo:" + shortHash(raw)
	default:
		return NullToken
	}
}

// ContextID returns the content-addressed id of a context node. The hash
// input is "start|end|name|type|coord_signature" with nil bounds replaced by
// the null token, so two contexts with identical semantic content always
// share one node.
func ContextID(start, end *string, locationName, spatialType, coordSig string) string {
	if locationName == "" {
		locationName = NullToken
	}
	if spatialType == "" {
		spatialType = NullToken
	}
	if coordSig == "" {
		coordSig = NullToken
	}
	key := strings.Join([]string{
		OrNullToken(start),
		OrNullToken(end),
		locationName,
		spatialType,
		coordSig,
	}, "|")
	return "ctx_" + shortHash(key)
}

// ContextIDFor computes the context id for an (interval, spatial context)
// pair as produced by the pipeline. A nil spatial context means an unknown
// location.
func ContextIDFor(interval types.TemporalInterval, sc *types.SpatialContext) string {
	name, geomType := NullToken, NullToken
	if sc != nil {
		if sc.Name != "" {
			name = sc.Name
		}
		if sc.Type != "" {
			geomType = sc.Type
		}
	}
	return ContextID(interval.StartTime, interval.EndTime, name, geomType, CoordinateSignature(sc))
}

// HyperedgeID returns the content-addressed id of a hyperedge. Subjects and
// objects are sorted (order of mention is irrelevant) and context ids are
// sorted and deduplicated, so the id is fully determined by the fact's
// semantic content.
func HyperedgeID(relation string, subjects, objects, contextIDs []string) string {
	subs := append([]string(nil), subjects...)
	objs := append([]string(nil), objects...)
	sort.Strings(subs)
	sort.Strings(objs)

	seen := make(map[string]struct{}, len(contextIDs))
	ctxs := make([]string, 0, len(contextIDs))
	for _, id := range contextIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ctxs = append(ctxs, id)
	}
	sort.Strings(ctxs)

	key := relation + "|" + strings.Join(subs, "|") + "|" + strings.Join(objs, "|") + "|" + strings.Join(ctxs, "|")
	return "he_" + shortHash(key)
}

// StateEventID mints a fresh random id for a state-change event. Events are
// not content-addressed: the same causal structure asserted twice is two
// events.
func StateEventID() string {
	return "sce_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// CoordinatesLiteral renders the coordinates property of a context: a native
// point literal for points, a quoted minified-JSON string for polygons, and
// null otherwise. Oversized polygon JSON degrades to null.
func CoordinatesLiteral(sc *types.SpatialContext) string {
	if sc == nil {
		return "null"
	}
	switch sc.Type {
	case types.GeometryPoint:
		if sc.Point == nil {
			return "null"
		}
		return PointLiteral(sc.Point.Lon(), sc.Point.Lat())
	case types.GeometryPolygon, types.GeometryMultiPolygon:
		raw, err := sc.CoordinateJSON()
		if err != nil || len(raw) > PolygonJSONLimit {
			return "null"
		}
		return Quote(raw)
	default:
		return "null"
	}
}

// EntityCount is the CONNECTS degree a hyperedge should carry for the given
// role sets.
func EntityCount(subjects, objects []string) int {
	return len(subjects) + len(objects)
}
