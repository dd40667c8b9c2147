package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/chronotope/pkg/cypher"
	"github.com/soundprediction/chronotope/pkg/types"
)

// ErrNoFieldChanges means a modification carried an empty modify_fields_to.
var ErrNoFieldChanges = errors.New("graph: modification has no field changes")

// firstTemporalBounds picks the first non-empty start and end across the
// corrected intervals. Modifications collapse to a single interval.
func firstTemporalBounds(intervals []types.TemporalInterval) (from, to *string) {
	for _, iv := range intervals {
		if from == nil && iv.StartTime != nil && *iv.StartTime != "" {
			from = iv.StartTime
		}
		if to == nil && iv.EndTime != nil && *iv.EndTime != "" {
			to = iv.EndTime
		}
	}
	return from, to
}

// nullableTimeLiteral renders a corrected time bound. The literal string
// "null" clears the bound.
func nullableTimeLiteral(v *string) string {
	if v == nil || *v == "" || strings.EqualFold(*v, "null") {
		return "null"
	}
	return cypher.Quote(*v)
}

// BuildModification renders the statement for a retroactive correction. The
// affected hyperedge is located by relation plus exact subject and object
// sets; then the requested fields are rewritten in place. When both temporal
// and spatial values change, the hyperedge is rewired to a single fresh
// content-addressed context so contexts shared with other hyperedges stay
// intact; otherwise the attached contexts are updated directly. Nil slices
// in the field changes leave that field alone.
func BuildModification(m types.Modification) (Statement, error) {
	if err := m.Validate(); err != nil {
		return Statement{}, err
	}
	changes := m.ModifyFieldsTo
	if changes.RelationType == "" && changes.Subjects == nil && changes.Objects == nil &&
		changes.TemporalIntervals == nil && changes.SpatialContexts == nil {
		return Statement{}, ErrNoFieldChanges
	}

	params := map[string]any{}
	parts := locatorLines("", "h", "mod", m.AffectedFact, params)

	if changes.RelationType != "" {
		params["new_rel"] = changes.RelationType
		parts = append(parts, "SET h.relation_type = $new_rel")
	}

	newFrom, newTo := firstTemporalBounds(changes.TemporalIntervals)
	var newSpatial *types.SpatialContext
	if len(changes.SpatialContexts) > 0 {
		newSpatial = &changes.SpatialContexts[0]
	}

	switch {
	case (newFrom != nil || newTo != nil) && newSpatial != nil:
		// Both dimensions change: rewire to one fresh context and drop the
		// old attachments, deleting contexts nothing else still claims. The
		// cleanup runs in a subquery so the outer row survives for the
		// clauses that follow.
		sc := *newSpatial
		if sc.Name == "" {
			sc.Name = "unknown"
		}
		if sc.Type == "" {
			sc.Type = types.GeometryUnknown
		}
		start, end := newFrom, newTo
		if start != nil && strings.EqualFold(*start, "null") {
			start = nil
		}
		if end != nil && strings.EqualFold(*end, "null") {
			end = nil
		}
		ctxID := cypher.ContextID(start, end, sc.Name, sc.Type, cypher.CoordinateSignature(&sc))
		parts = append(parts,
			fmt.Sprintf("MERGE (new_ctx:Context {id: '%s'})", ctxID),
			fmt.Sprintf("ON CREATE SET new_ctx.from_time = %s, new_ctx.to_time = %s, new_ctx.location_name = '%s', new_ctx.spatial_type = '%s', new_ctx.coordinates = %s, new_ctx.certainty = 1.0",
				nullableTimeLiteral(newFrom), nullableTimeLiteral(newTo),
				cypher.Escape(sc.Name), cypher.Escape(sc.Type), cypher.CoordinatesLiteral(&sc)),
			"MERGE (h)-[:VALID_IN]->(new_ctx)",
			"CALL {",
			"  WITH h, new_ctx",
			"  OPTIONAL MATCH (h)-[r_old:VALID_IN]->(oldC:Context)",
			"  WHERE oldC <> new_ctx",
			"  DELETE r_old",
			"  WITH oldC",
			"  WHERE oldC IS NOT NULL AND NOT (oldC)<-[:VALID_IN]-()",
			"  DETACH DELETE oldC",
			"}")

	default:
		if newFrom != nil || newTo != nil {
			parts = append(parts, "MATCH (h)-[:VALID_IN]->(c:Context)")
			var sets []string
			if newFrom != nil {
				params["new_from"] = *newFrom
				sets = append(sets, "c.from_time = $new_from")
			}
			if newTo != nil {
				if strings.EqualFold(*newTo, "null") {
					sets = append(sets, "c.to_time = null")
				} else {
					params["new_to"] = *newTo
					sets = append(sets, "c.to_time = $new_to")
				}
			}
			parts = append(parts, "SET "+strings.Join(sets, ", "))
		}
		if newSpatial != nil {
			parts = append(parts, "MATCH (h)-[:VALID_IN]->(c2:Context)")
			var sets []string
			if newSpatial.Name != "" {
				params["sp_new_name"] = newSpatial.Name
				sets = append(sets, "c2.location_name = $sp_new_name")
			}
			if newSpatial.Type != "" {
				params["sp_new_type"] = newSpatial.Type
				sets = append(sets, "c2.spatial_type = $sp_new_type")
			}
			switch {
			case newSpatial.Point != nil && newSpatial.Type == types.GeometryPoint:
				sets = append(sets, "c2.coordinates = "+cypher.PointLiteral(newSpatial.Point.Lon(), newSpatial.Point.Lat()))
			case newSpatial.Polygon != nil || newSpatial.MultiPolygon != nil:
				if raw, err := newSpatial.CoordinateJSON(); err == nil {
					params["sp_new_coords"] = raw
					sets = append(sets, "c2.coordinates = $sp_new_coords")
				} else {
					sets = append(sets, "c2.coordinates = null")
				}
			}
			if len(sets) > 0 {
				parts = append(parts, "SET "+strings.Join(sets, ", "))
			}
		}
	}

	rewired := false
	if changes.Subjects != nil {
		rewired = true
		parts = append(parts,
			"OPTIONAL MATCH (h)-[r_sub:CONNECTS {role: 'subject'}]->(:Node)",
			"DELETE r_sub",
			"WITH DISTINCT h")
		for i, subject := range changes.Subjects {
			p := fmt.Sprintf("ns_%d_id", i)
			params[p] = subject
			parts = append(parts,
				fmt.Sprintf("MERGE (ns_%d:Node {id: $%s})", i, p),
				fmt.Sprintf("SET ns_%d.type = 'entity'", i),
				fmt.Sprintf("CREATE (h)-[:CONNECTS {role: 'subject'}]->(ns_%d)", i))
		}
	}
	if changes.Objects != nil {
		rewired = true
		parts = append(parts,
			"OPTIONAL MATCH (h)-[r_obj:CONNECTS {role: 'object'}]->(:Node)",
			"DELETE r_obj",
			"WITH DISTINCT h")
		for i, object := range changes.Objects {
			p := fmt.Sprintf("no_%d_id", i)
			params[p] = object
			parts = append(parts,
				fmt.Sprintf("MERGE (no_%d:Node {id: $%s})", i, p),
				fmt.Sprintf("SET no_%d.type = 'entity'", i),
				fmt.Sprintf("CREATE (h)-[:CONNECTS {role: 'object'}]->(no_%d)", i))
		}
	}

	if rewired {
		parts = append(parts,
			"WITH DISTINCT h",
			"MATCH (h)-[:CONNECTS]->(n:Node)",
			"WITH h, count(n) AS ec",
			"SET h.entity_count = ec")
	}

	return Statement{Query: strings.Join(parts, "\n"), Params: params}, nil
}
