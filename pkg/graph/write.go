package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundprediction/chronotope/pkg/cypher"
	"github.com/soundprediction/chronotope/pkg/types"
)

// unknownSpatial fills in for a fact asserted with no location, so every
// temporal interval still gets a context node.
var unknownSpatial = types.SpatialContext{Name: "unknown", Type: types.GeometryUnknown}

// BuildCreateFact renders the creation statement for a fresh hyperedge:
// MERGE every entity, one context per (interval, location) pair under its
// content-addressed id, the hyperedge under its deterministic id, and all
// CONNECTS and VALID_IN edges.
func BuildCreateFact(fact types.Fact) (Statement, error) {
	if err := fact.Validate(); err != nil {
		return Statement{}, err
	}

	params := map[string]any{}
	var parts []string

	for i, subject := range fact.Subjects {
		key := fmt.Sprintf("subject_%d_id", i)
		params[key] = subject
		parts = append(parts,
			fmt.Sprintf("MERGE (subject_%d:Node {id: $%s})", i, key),
			fmt.Sprintf("SET subject_%d.type = 'entity'", i))
	}
	for i, object := range fact.Objects {
		key := fmt.Sprintf("object_%d_id", i)
		params[key] = object
		parts = append(parts,
			fmt.Sprintf("MERGE (object_%d:Node {id: $%s})", i, key),
			fmt.Sprintf("SET object_%d.type = 'entity'", i))
	}

	intervals := fact.TemporalIntervals
	if len(intervals) == 0 {
		intervals = []types.TemporalInterval{{}}
	}
	spatials := fact.SpatialContexts
	if len(spatials) == 0 {
		spatials = []types.SpatialContext{unknownSpatial}
	}

	var contextAliases, contextIDs []string
	for i, interval := range intervals {
		for j, sc := range spatials {
			alias := fmt.Sprintf("context_%d_%d", i, j)
			parts = append(parts, contextClauses(alias, interval, sc, params)...)
			contextAliases = append(contextAliases, alias)
			contextIDs = append(contextIDs, cypher.ContextIDFor(interval, &sc))
		}
	}

	hyperedgeID := cypher.HyperedgeID(fact.RelationType, fact.Subjects, fact.Objects, contextIDs)
	params["relation_type"] = fact.RelationType
	parts = append(parts,
		fmt.Sprintf("MERGE (hyperedge:Hyperedge {id: '%s'})", hyperedgeID),
		fmt.Sprintf("ON CREATE SET hyperedge.relation_type = $relation_type, hyperedge.entity_count = %d",
			cypher.EntityCount(fact.Subjects, fact.Objects)))

	for i := range fact.Subjects {
		parts = append(parts, fmt.Sprintf("MERGE (hyperedge)-[:CONNECTS {role: 'subject'}]->(subject_%d)", i))
	}
	for i := range fact.Objects {
		parts = append(parts, fmt.Sprintf("MERGE (hyperedge)-[:CONNECTS {role: 'object'}]->(object_%d)", i))
	}
	for _, alias := range contextAliases {
		parts = append(parts, fmt.Sprintf("MERGE (hyperedge)-[:VALID_IN]->(%s)", alias))
	}

	return Statement{Query: strings.Join(parts, "\n"), Params: params}, nil
}

// contextClauses renders the MERGE + ON CREATE SET pair for one context
// node. The deterministic id is interpolated; every property travels as a
// parameter except point literals and nulls.
func contextClauses(alias string, interval types.TemporalInterval, sc types.SpatialContext, params map[string]any) []string {
	id := cypher.ContextIDFor(interval, &sc)
	fromKey, toKey := alias+"_from", alias+"_to"
	locKey, typeKey := alias+"_loc", alias+"_stype"
	params[fromKey] = nullableParam(interval.StartTime)
	params[toKey] = nullableParam(interval.EndTime)
	params[locKey] = sc.Name
	params[typeKey] = sc.Type

	coords := coordinatesTerm(alias, sc, params)
	return []string{
		fmt.Sprintf("MERGE (%s:Context {id: '%s'})", alias, id),
		fmt.Sprintf("ON CREATE SET %[1]s.from_time = $%[2]s, %[1]s.to_time = $%[3]s, %[1]s.location_name = $%[4]s, %[1]s.spatial_type = $%[5]s, %[1]s.coordinates = %[6]s, %[1]s.certainty = 1.0",
			alias, fromKey, toKey, locKey, typeKey, coords),
	}
}

// coordinatesTerm renders the coordinates property: an inline point literal
// for points, a parameter holding the minified JSON for polygons (polygon
// strings can be large), and null otherwise.
func coordinatesTerm(alias string, sc types.SpatialContext, params map[string]any) string {
	switch sc.Type {
	case types.GeometryPoint:
		if sc.Point == nil {
			return "null"
		}
		return cypher.PointLiteral(sc.Point.Lon(), sc.Point.Lat())
	case types.GeometryPolygon, types.GeometryMultiPolygon:
		raw, err := sc.CoordinateJSON()
		if err != nil || len(raw) > cypher.PolygonJSONLimit {
			return "null"
		}
		key := alias + "_coords"
		params[key] = raw
		return "$" + key
	default:
		return "null"
	}
}

func nullableParam(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// ExistingHyperedge is the snapshot of a hyperedge selected by one of the
// append criteria, used to compute the set differences an append must add.
type ExistingHyperedge struct {
	ID                string
	RelationType      string
	Subjects          []string
	Objects           []string
	TemporalIntervals []types.TemporalInterval
	SpatialContexts   []types.SpatialContext
	Criterion         int
}

// buildAppendProbe renders the probe statement for one append criterion:
//
//	1: (relation, objects, contexts) match, to append new subjects
//	2: (subjects, relation, objects) match, to append new contexts
//	3: (subjects, relation, contexts) match, to append new objects
//
// Set equality is size equality plus mutual containment over collected
// DISTINCT values, with nulls coalesced to the null token so unknown bounds
// compare equal. Intransitive facts only match hyperedges with no object
// connections. Ties break on the smallest hyperedge id.
func buildAppendProbe(criterion int, fact types.Fact) Statement {
	hasObjects := len(fact.Objects) > 0
	hasTimes := len(fact.TemporalIntervals) > 0
	hasNames := len(fact.SpatialContexts) > 0

	params := map[string]any{
		"relation":      fact.RelationType,
		"subjectsList":  stringList(fact.Subjects),
		"objectsList":   stringList(fact.Objects),
		"temporalTimes": temporalTimesParam(fact.TemporalIntervals),
		"spatialNames":  spatialNamesParam(fact.SpatialContexts),
	}

	var parts []string
	carry := "h"

	subjectBlock := func() {
		parts = append(parts,
			"MATCH (h:Hyperedge {relation_type: $relation})",
			"MATCH (h)-[:CONNECTS {role: 'subject'}]->(s:Node)",
			"WITH h, collect(DISTINCT s.id) AS subjIds",
			"WHERE size(subjIds) = size($subjectsList)",
			"  AND all(x IN subjIds WHERE x IN $subjectsList)",
			"  AND all(x IN $subjectsList WHERE x IN subjIds)")
		carry = "h, subjIds"
	}

	switch criterion {
	case 1:
		if hasObjects {
			parts = append(parts,
				"MATCH (h:Hyperedge {relation_type: $relation})",
				"MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)",
				"WITH h, collect(DISTINCT o.id) AS objIds",
				"WHERE size(objIds) = size($objectsList)",
				"  AND all(x IN objIds WHERE x IN $objectsList)",
				"  AND all(x IN $objectsList WHERE x IN objIds)")
			carry = "h, objIds"
		} else {
			parts = append(parts,
				"MATCH (h:Hyperedge {relation_type: $relation})",
				"WHERE NOT EXISTS((h)-[:CONNECTS {role: 'object'}]->())")
		}
	case 2:
		subjectBlock()
		if hasObjects {
			parts = append(parts,
				"MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)",
				"WITH h, subjIds, collect(DISTINCT o.id) AS objIds",
				"WHERE size(objIds) = size($objectsList)",
				"  AND all(x IN objIds WHERE x IN $objectsList)",
				"  AND all(x IN $objectsList WHERE x IN objIds)")
		} else {
			parts = append(parts, "  AND NOT EXISTS((h)-[:CONNECTS {role: 'object'}]->())")
		}
		parts = append(parts, "RETURN h.id AS hyperedge_id ORDER BY h.id LIMIT 1")
		return Statement{Query: strings.Join(parts, "\n"), Params: params}
	case 3:
		subjectBlock()
	}

	if hasTimes {
		parts = append(parts,
			"MATCH (h)-[:VALID_IN]->(c:Context)",
			fmt.Sprintf("WITH %s, collect(DISTINCT [coalesce(c.from_time, '%s'), coalesce(c.to_time, '%s')]) AS contextTimes",
				carry, cypher.NullToken, cypher.NullToken),
			"WHERE size(contextTimes) = size($temporalTimes)",
			"  AND all(x IN contextTimes WHERE x IN $temporalTimes)",
			"  AND all(x IN $temporalTimes WHERE x IN contextTimes)")
	}
	if hasNames {
		parts = append(parts,
			"MATCH (h)-[:VALID_IN]->(c2:Context)",
			fmt.Sprintf("WITH %s, collect(DISTINCT coalesce(c2.location_name, '%s')) AS contextNames",
				carry, cypher.NullToken),
			"WHERE size(contextNames) = size($spatialNames)",
			"  AND all(x IN contextNames WHERE x IN $spatialNames)",
			"  AND all(x IN $spatialNames WHERE x IN contextNames)")
	}
	parts = append(parts, "RETURN h.id AS hyperedge_id ORDER BY h.id LIMIT 1")

	return Statement{Query: strings.Join(parts, "\n"), Params: params}
}

// FindAppendable probes the graph for a hyperedge the fact can extend,
// trying the three criteria in order. A failed probe is logged and treated
// as no match; the caller falls back to creating a fresh hyperedge.
func (s *Store) FindAppendable(ctx context.Context, fact types.Fact) (*ExistingHyperedge, error) {
	for criterion := 1; criterion <= 3; criterion++ {
		stmt := buildAppendProbe(criterion, fact)
		recs, err := s.readRecords(ctx, stmt.Query, stmt.Params)
		if err != nil {
			s.logger.Warn("append probe failed", "criterion", criterion, "error", err)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		id, _ := recordValue(recs[0], "hyperedge_id").(string)
		if id == "" {
			continue
		}
		existing, err := s.loadHyperedge(ctx, id)
		if err != nil {
			s.logger.Warn("loading appendable hyperedge failed", "hyperedge_id", id, "error", err)
			continue
		}
		existing.Criterion = criterion
		return existing, nil
	}
	return nil, nil
}

func (s *Store) loadHyperedge(ctx context.Context, hyperedgeID string) (*ExistingHyperedge, error) {
	recs, err := s.readRecords(ctx, `
		MATCH (h:Hyperedge {id: $id})
		OPTIONAL MATCH (h)-[:CONNECTS {role: 'subject'}]->(s:Node)
		OPTIONAL MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)
		OPTIONAL MATCH (h)-[:VALID_IN]->(c:Context)
		RETURN h.relation_type AS relation_type,
		       collect(DISTINCT s.id) AS subjects,
		       collect(DISTINCT o.id) AS objects,
		       collect(DISTINCT {start_time: c.from_time, end_time: c.to_time}) AS temporal_intervals,
		       collect(DISTINCT {name: c.location_name, type: c.spatial_type, coordinates: c.coordinates}) AS spatial_contexts`,
		map[string]any{"id": hyperedgeID})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrHyperedgeNotFound
	}

	rec := recs[0]
	relation, _ := recordValue(rec, "relation_type").(string)
	existing := &ExistingHyperedge{
		ID:           hyperedgeID,
		RelationType: relation,
		Subjects:     toStringSlice(recordValue(rec, "subjects")),
		Objects:      toStringSlice(recordValue(rec, "objects")),
	}
	if items, ok := recordValue(rec, "temporal_intervals").([]any); ok {
		for _, item := range items {
			if interval, ok := intervalFromStored(item); ok {
				existing.TemporalIntervals = append(existing.TemporalIntervals, interval)
			}
		}
	}
	if items, ok := recordValue(rec, "spatial_contexts").([]any); ok {
		for _, item := range items {
			if sc, ok := spatialFromStored(item); ok {
				existing.SpatialContexts = append(existing.SpatialContexts, sc)
			}
		}
	}
	return existing, nil
}

// BuildAppend renders the statement that extends an existing hyperedge with
// whatever the incoming fact adds: missing entities get new CONNECTS edges,
// new times cross with all (existing + incoming) locations, new locations
// cross with all times, and entity_count is recomputed from the live
// CONNECTS degree.
func BuildAppend(existing *ExistingHyperedge, fact types.Fact) Statement {
	params := map[string]any{"hyperedge_id": existing.ID}
	parts := []string{"MATCH (existing_hyperedge:Hyperedge {id: $hyperedge_id})"}

	for i, subject := range diffStrings(fact.Subjects, existing.Subjects) {
		key := fmt.Sprintf("new_subject_%d_id", i)
		params[key] = subject
		parts = append(parts,
			fmt.Sprintf("MERGE (new_subject_%d:Node {id: $%s})", i, key),
			fmt.Sprintf("SET new_subject_%d.type = 'entity'", i),
			fmt.Sprintf("CREATE (existing_hyperedge)-[:CONNECTS {role: 'subject'}]->(new_subject_%d)", i))
	}
	for i, object := range diffStrings(fact.Objects, existing.Objects) {
		key := fmt.Sprintf("new_object_%d_id", i)
		params[key] = object
		parts = append(parts,
			fmt.Sprintf("MERGE (new_object_%d:Node {id: $%s})", i, key),
			fmt.Sprintf("SET new_object_%d.type = 'entity'", i),
			fmt.Sprintf("CREATE (existing_hyperedge)-[:CONNECTS {role: 'object'}]->(new_object_%d)", i))
	}

	newTemporal := diffIntervals(fact.TemporalIntervals, existing.TemporalIntervals)
	if len(newTemporal) > 0 {
		allSpatial := append(append([]types.SpatialContext(nil), existing.SpatialContexts...), fact.SpatialContexts...)
		if len(allSpatial) == 0 {
			allSpatial = []types.SpatialContext{unknownSpatial}
		}
		for i, interval := range newTemporal {
			for j, sc := range allSpatial {
				alias := fmt.Sprintf("new_context_%d_%d", i, j)
				parts = append(parts, contextClauses(alias, interval, sc, params)...)
				parts = append(parts, fmt.Sprintf("MERGE (existing_hyperedge)-[:VALID_IN]->(%s)", alias))
			}
		}
	}

	newSpatial := diffSpatial(fact.SpatialContexts, existing.SpatialContexts)
	if len(newSpatial) > 0 {
		allTemporal := append(append([]types.TemporalInterval(nil), existing.TemporalIntervals...), fact.TemporalIntervals...)
		for i, interval := range allTemporal {
			for j, sc := range newSpatial {
				alias := fmt.Sprintf("new_spatial_context_%d_%d", i, j)
				parts = append(parts, contextClauses(alias, interval, sc, params)...)
				parts = append(parts, fmt.Sprintf("MERGE (existing_hyperedge)-[:VALID_IN]->(%s)", alias))
			}
		}
	}

	parts = append(parts,
		"WITH existing_hyperedge",
		"MATCH (existing_hyperedge)-[:CONNECTS]->(n:Node)",
		"WITH existing_hyperedge, count(n) AS entity_count",
		"SET existing_hyperedge.entity_count = entity_count")

	return Statement{Query: strings.Join(parts, "\n"), Params: params}
}

func diffStrings(incoming, existing []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e] = struct{}{}
	}
	var out []string
	for _, v := range incoming {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func intervalKey(t types.TemporalInterval) string {
	return cypher.OrNullToken(t.StartTime) + "|" + cypher.OrNullToken(t.EndTime)
}

func diffIntervals(incoming, existing []types.TemporalInterval) []types.TemporalInterval {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[intervalKey(e)] = struct{}{}
	}
	var out []types.TemporalInterval
	for _, t := range incoming {
		if _, ok := seen[intervalKey(t)]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func spatialKey(sc types.SpatialContext) string {
	return sc.Name + "|" + sc.Type + "|" + cypher.CoordinateSignature(&sc)
}

func diffSpatial(incoming, existing []types.SpatialContext) []types.SpatialContext {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[spatialKey(e)] = struct{}{}
	}
	var out []types.SpatialContext
	for _, sc := range incoming {
		if _, ok := seen[spatialKey(sc)]; !ok {
			out = append(out, sc)
		}
	}
	return out
}

func stringList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func temporalTimesParam(intervals []types.TemporalInterval) []any {
	out := make([]any, 0, len(intervals))
	for _, t := range intervals {
		out = append(out, []string{cypher.OrNullToken(t.StartTime), cypher.OrNullToken(t.EndTime)})
	}
	return out
}

func spatialNamesParam(contexts []types.SpatialContext) []string {
	out := make([]string, 0, len(contexts))
	for _, sc := range contexts {
		name := sc.Name
		if name == "" {
			name = cypher.NullToken
		}
		out = append(out, name)
	}
	return out
}
