package graph

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/chronotope/pkg/temporal"
	"github.com/soundprediction/chronotope/pkg/types"
)

// SpatiotemporalFilter narrows hyperedges to those valid at a time and place.
// Location names take precedence over the polygon when both are set. An empty
// filter matches every hyperedge.
type SpatiotemporalFilter struct {
	StartTime           *string
	EndTime             *string
	LocationNames       []string
	LocationCoordinates []types.Position

	// IncludeSpatiallyUnconstrained keeps hyperedges with no spatial context
	// when a polygon filter is active; IncludeTemporallyUnconstrained does
	// the same for open-ended intervals under a temporal filter.
	IncludeSpatiallyUnconstrained  bool
	IncludeTemporallyUnconstrained bool
}

func (f SpatiotemporalFilter) empty() bool {
	return f.StartTime == nil && f.EndTime == nil &&
		len(f.LocationNames) == 0 && len(f.LocationCoordinates) == 0
}

// QuerySpatiotemporal returns the ids of hyperedges whose validity contexts
// satisfy the filter. Cypher does the coarse cut; candidate intervals are
// re-checked against exact interval semantics and the polygon filter tests
// containment and intersection client side.
func (s *Store) QuerySpatiotemporal(ctx context.Context, f SpatiotemporalFilter) ([]string, error) {
	if f.empty() {
		recs, err := s.readRecords(ctx, "MATCH (h:Hyperedge)\nRETURN DISTINCT h.id AS hyperedge_id", nil)
		if err != nil {
			return nil, err
		}
		return collectIDs(recs, "hyperedge_id"), nil
	}

	parts := []string{"MATCH (h:Hyperedge)-[:VALID_IN]->(c:Context)"}
	var conds []string
	params := map[string]any{}

	if f.StartTime != nil {
		if f.IncludeTemporallyUnconstrained {
			conds = append(conds, "(c.to_time IS NULL OR c.to_time >= $start_time)")
		} else {
			conds = append(conds, "(c.to_time IS NOT NULL AND c.to_time >= $start_time)")
		}
		params["start_time"] = *f.StartTime
	}
	if f.EndTime != nil {
		if f.IncludeTemporallyUnconstrained {
			conds = append(conds, "(c.from_time IS NULL OR c.from_time <= $end_time)")
		} else {
			conds = append(conds, "(c.from_time IS NOT NULL AND c.from_time <= $end_time)")
		}
		params["end_time"] = *f.EndTime
	}

	if len(f.LocationNames) > 0 {
		conds = append(conds, "c.location_name IN $location_names")
		params["location_names"] = f.LocationNames
	} else if len(f.LocationCoordinates) > 0 {
		if f.IncludeSpatiallyUnconstrained {
			conds = append(conds, "(c.coordinates IS NOT NULL OR c.spatial_type IS NULL)")
		} else {
			conds = append(conds, "c.coordinates IS NOT NULL")
		}
	}

	if len(conds) > 0 {
		parts = append(parts, "WHERE "+strings.Join(conds, " AND "))
	}
	parts = append(parts, "RETURN DISTINCT h.id AS hyperedge_id")

	recs, err := s.readRecords(ctx, strings.Join(parts, "\n"), params)
	if err != nil {
		return nil, err
	}
	ids := collectIDs(recs, "hyperedge_id")

	if f.StartTime != nil || f.EndTime != nil {
		if ids, err = s.filterByTime(ctx, ids, f); err != nil {
			return nil, err
		}
	}

	if len(f.LocationNames) > 0 || len(f.LocationCoordinates) == 0 {
		return ids, nil
	}
	return s.filterByPolygon(ctx, ids, f)
}

// filterByTime re-checks the candidates against exact interval semantics.
// The Cypher pre-filter compares bound strings lexically, which also admits
// descriptor bounds ("start of the wedding"); those parse to nothing and
// count as temporally unconstrained.
func (s *Store) filterByTime(ctx context.Context, ids []string, f SpatiotemporalFilter) ([]string, error) {
	if len(ids) == 0 {
		return ids, nil
	}
	recs, err := s.readRecords(ctx, strings.Join([]string{
		"MATCH (h:Hyperedge)-[:VALID_IN]->(c:Context)",
		"WHERE h.id IN $hyperedge_ids",
		"RETURN h.id AS hyperedge_id, c.from_time AS from_time, c.to_time AS to_time",
	}, "\n"), map[string]any{"hyperedge_ids": ids})
	if err != nil {
		return nil, err
	}

	qStart := temporal.ParseBound(f.StartTime)
	qEnd := temporal.ParseBound(f.EndTime)

	matched := map[string]struct{}{}
	for _, rec := range recs {
		id, _ := recordValue(rec, "hyperedge_id").(string)
		if id == "" {
			continue
		}
		interval := types.TemporalInterval{
			StartTime: toStringPtr(recordValue(rec, "from_time")),
			EndTime:   toStringPtr(recordValue(rec, "to_time")),
		}
		if intervalMatchesWindow(interval, qStart, qEnd, f.IncludeTemporallyUnconstrained) {
			matched[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(matched))
	for id := range matched {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// intervalMatchesWindow reports whether one stored interval keeps its
// hyperedge inside the query window. Intervals with no parseable bound are
// unconstrained and match only when the filter asks for them.
func intervalMatchesWindow(interval types.TemporalInterval, qStart, qEnd *time.Time, includeUnconstrained bool) bool {
	if !temporal.IsConstrained([]types.TemporalInterval{interval}) {
		return includeUnconstrained
	}
	return temporal.Overlaps(interval, qStart, qEnd)
}

// filterByPolygon keeps only the candidates whose stored geometry intersects
// the user polygon, plus spatially unconstrained contexts when requested.
func (s *Store) filterByPolygon(ctx context.Context, ids []string, f SpatiotemporalFilter) ([]string, error) {
	spatialCond := "c.coordinates IS NOT NULL"
	if f.IncludeSpatiallyUnconstrained {
		spatialCond = "(c.coordinates IS NOT NULL OR c.spatial_type IS NULL)"
	}
	recs, err := s.readRecords(ctx, strings.Join([]string{
		"MATCH (h:Hyperedge)-[:VALID_IN]->(c:Context)",
		"WHERE h.id IN $hyperedge_ids AND " + spatialCond,
		"RETURN h.id AS hyperedge_id, c.coordinates AS coordinates, c.spatial_type AS spatial_type",
	}, "\n"), map[string]any{"hyperedge_ids": ids})
	if err != nil {
		return nil, err
	}

	matched := map[string]struct{}{}
	for _, rec := range recs {
		id, _ := recordValue(rec, "hyperedge_id").(string)
		if id == "" {
			continue
		}
		coords := recordValue(rec, "coordinates")
		spatialType, _ := recordValue(rec, "spatial_type").(string)
		if coords == nil || spatialType == "" {
			matched[id] = struct{}{}
			continue
		}
		if spatialIntersects(coords, spatialType, f.LocationCoordinates) {
			matched[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(matched))
	for id := range matched {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// SpatialSummary is the display form of one spatial context: either a bare
// location name or a raw coordinates value.
type SpatialSummary struct {
	Name        string `json:"name,omitempty"`
	Coordinates any    `json:"coordinates,omitempty"`
}

// ContextView is the display form of a validity context.
type ContextView struct {
	ID           string  `json:"id"`
	FromTime     *string `json:"from_time"`
	ToTime       *string `json:"to_time"`
	LocationName *string `json:"location_name"`
}

// HyperedgeView is one hyperedge in the frontend shape: role lists plus the
// flattened entity list, with its temporal and spatial contexts.
type HyperedgeView struct {
	ID                string                   `json:"id"`
	Entities          []string                 `json:"entities"`
	RelationType      string                   `json:"relation_type"`
	Subjects          []string                 `json:"subjects"`
	Objects           []string                 `json:"objects"`
	TemporalIntervals []types.TemporalInterval `json:"temporal_intervals"`
	SpatialContexts   []SpatialSummary         `json:"spatial_contexts"`
	Contexts          []ContextView            `json:"contexts"`
}

// StateEventView is one state-change event in the frontend shape.
type StateEventView struct {
	ID           string             `json:"id"`
	FactType     string             `json:"fact_type"`
	AffectedFact types.FactRef      `json:"affected_fact"`
	CausedBy     [][]types.CauseRef `json:"caused_by"`
	Causes       []types.EffectRef  `json:"causes"`
}

// Hyperstructure is the full graph snapshot served to the frontend.
type Hyperstructure struct {
	Name           string           `json:"name"`
	Entities       []string         `json:"entities"`
	Hyperedges     []HyperedgeView  `json:"hyperedges"`
	HyperedgeCount int              `json:"hyperedge_count"`
	StateEvents    []StateEventView `json:"state_events,omitempty"`
}

const hyperedgeViewReturn = `OPTIONAL MATCH (h)-[:CONNECTS {role: 'subject'}]->(s:Node)
OPTIONAL MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)
OPTIONAL MATCH (h)-[:VALID_IN]->(c:Context)
RETURN h,
       collect(DISTINCT s) AS subject_nodes,
       collect(DISTINCT o) AS object_nodes,
       collect(DISTINCT c) AS contexts
ORDER BY h.id`

// HyperstructureData fetches every hyperedge matching the filter, with its
// entities and contexts, plus the recorded state-change events.
func (s *Store) HyperstructureData(ctx context.Context, f SpatiotemporalFilter) (*Hyperstructure, error) {
	var (
		query  string
		params map[string]any
	)
	if f.empty() {
		query = "MATCH (h:Hyperedge)\n" + hyperedgeViewReturn
	} else {
		ids, err := s.QuerySpatiotemporal(ctx, f)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return &Hyperstructure{Name: "Neo4j Hyperstructure", Entities: []string{}, Hyperedges: []HyperedgeView{}}, nil
		}
		query = "MATCH (h:Hyperedge)\nWHERE h.id IN $hyperedge_ids\n" + hyperedgeViewReturn
		params = map[string]any{"hyperedge_ids": ids}
	}

	recs, err := s.readRecords(ctx, query, params)
	if err != nil {
		return nil, err
	}

	data := &Hyperstructure{Name: "Neo4j Hyperstructure", Entities: []string{}, Hyperedges: []HyperedgeView{}}
	seenEntities := map[string]struct{}{}
	for _, rec := range recs {
		view := hyperedgeViewFromRecord(rec)
		for _, id := range view.Entities {
			if _, ok := seenEntities[id]; !ok {
				seenEntities[id] = struct{}{}
				data.Entities = append(data.Entities, id)
			}
		}
		data.Hyperedges = append(data.Hyperedges, view)
	}
	data.HyperedgeCount = len(data.Hyperedges)

	events, err := s.stateEvents(ctx)
	if err != nil {
		s.logger.Warn("failed to load state events", "error", err)
	} else {
		data.StateEvents = events
	}
	return data, nil
}

func hyperedgeViewFromRecord(rec *db.Record) HyperedgeView {
	props := nodeProps(recordValue(rec, "h"))
	view := HyperedgeView{
		Entities:          []string{},
		Subjects:          []string{},
		Objects:           []string{},
		TemporalIntervals: []types.TemporalInterval{},
		SpatialContexts:   []SpatialSummary{},
		Contexts:          []ContextView{},
	}
	view.ID, _ = props["id"].(string)
	view.RelationType, _ = props["relation_type"].(string)
	if view.RelationType == "" {
		view.RelationType = "unknown"
	}

	for _, id := range nodeIDs(recordValue(rec, "subject_nodes")) {
		view.Subjects = append(view.Subjects, id)
		view.Entities = append(view.Entities, id)
	}
	for _, id := range nodeIDs(recordValue(rec, "object_nodes")) {
		view.Objects = append(view.Objects, id)
		view.Entities = append(view.Entities, id)
	}
	// Legacy hyperedges carry no roles; treat the first entity as subject.
	if len(view.Subjects) == 0 && len(view.Objects) == 0 && len(view.Entities) > 0 {
		view.Subjects = view.Entities[:1]
		view.Objects = view.Entities[1:]
	}

	contexts, _ := recordValue(rec, "contexts").([]any)
	for _, item := range contexts {
		cp := nodeProps(item)
		if len(cp) == 0 {
			continue
		}
		from := toStringPtr(cp["from_time"])
		to := toStringPtr(cp["to_time"])
		name := toStringPtr(cp["location_name"])
		if from != nil || to != nil {
			view.TemporalIntervals = append(view.TemporalIntervals, types.TemporalInterval{StartTime: from, EndTime: to})
		}
		if name != nil && *name != "" {
			view.SpatialContexts = append(view.SpatialContexts, SpatialSummary{Name: *name})
		} else if coords := coordinateValue(cp["coordinates"]); coords != nil {
			view.SpatialContexts = append(view.SpatialContexts, SpatialSummary{Coordinates: coords})
		}
		if id, ok := cp["id"].(string); ok || from != nil || to != nil || name != nil {
			view.Contexts = append(view.Contexts, ContextView{ID: id, FromTime: from, ToTime: to, LocationName: name})
		}
	}
	return view
}

// stateEvents loads every state-change event with its affected fact and a
// single flat caused-by group rebuilt from the inbound CAUSES_STATE edges.
func (s *Store) stateEvents(ctx context.Context) ([]StateEventView, error) {
	recs, err := s.readRecords(ctx, `MATCH (sce:StateChangeEvent)-[:AFFECTS_FACT]->(h:Hyperedge)
OPTIONAL MATCH (hc:Hyperedge)-[c:CAUSES_STATE]->(sce)
WITH sce, h, collect({id: hc.id, relation_type: hc.relation_type, req: c.required_state}) AS causes
RETURN sce.id AS id,
       h.id AS affected_id, h.relation_type AS affected_relation,
       [x IN causes WHERE x.id IS NOT NULL] AS caused_by
ORDER BY id`, nil)
	if err != nil {
		return nil, err
	}

	var events []StateEventView
	for _, rec := range recs {
		id, _ := recordValue(rec, "id").(string)
		affectedID, _ := recordValue(rec, "affected_id").(string)
		affectedRel, _ := recordValue(rec, "affected_relation").(string)

		affected, err := s.factRef(ctx, affectedID, affectedRel)
		if err != nil {
			return nil, err
		}

		event := StateEventView{
			ID:           id,
			FactType:     types.FactTypeStateChange,
			AffectedFact: affected,
			Causes:       []types.EffectRef{},
		}

		causes, _ := recordValue(rec, "caused_by").([]any)
		var group []types.CauseRef
		for _, item := range causes {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			causeID, _ := m["id"].(string)
			causeRel, _ := m["relation_type"].(string)
			ref, err := s.factRef(ctx, causeID, causeRel)
			if err != nil {
				return nil, err
			}
			required, ok := m["req"].(bool)
			if !ok {
				required = true
			}
			group = append(group, types.CauseRef{FactRef: ref, TriggeredByState: required})
		}
		if len(group) > 0 {
			event.CausedBy = append(event.CausedBy, group)
		}
		events = append(events, event)
	}
	return events, nil
}

// factRef rebuilds the subject and object sets of a hyperedge by id.
func (s *Store) factRef(ctx context.Context, hyperedgeID, fallbackRelation string) (types.FactRef, error) {
	recs, err := s.readRecords(ctx, `MATCH (h:Hyperedge {id: $hid})
OPTIONAL MATCH (h)-[:CONNECTS {role: 'subject'}]->(s:Node)
OPTIONAL MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)
RETURN collect(DISTINCT s.id) AS subs, collect(DISTINCT o.id) AS objs, h.relation_type AS rel`,
		map[string]any{"hid": hyperedgeID})
	if err != nil {
		return types.FactRef{}, err
	}

	ref := types.FactRef{Subjects: []string{}, Objects: []string{}, RelationType: fallbackRelation}
	if len(recs) > 0 {
		if subs := toStringSlice(recordValue(recs[0], "subs")); subs != nil {
			ref.Subjects = subs
		}
		if objs := toStringSlice(recordValue(recs[0], "objs")); objs != nil {
			ref.Objects = objs
		}
		if rel, ok := recordValue(recs[0], "rel").(string); ok && rel != "" {
			ref.RelationType = rel
		}
	}
	return ref, nil
}

// EntitiesByRelation returns the distinct entity ids connected to hyperedges
// whose relation type contains the given phrase, case-insensitively.
func (s *Store) EntitiesByRelation(ctx context.Context, relation string) ([]string, error) {
	recs, err := s.readRecords(ctx, `MATCH (h:Hyperedge)
WHERE toLower(h.relation_type) CONTAINS toLower($rel)
OPTIONAL MATCH (h)-[:CONNECTS]->(n:Node)
WITH DISTINCT n WHERE n IS NOT NULL
RETURN DISTINCT n.id AS entity_id
ORDER BY entity_id`, map[string]any{"rel": relation})
	if err != nil {
		return nil, err
	}
	return collectIDs(recs, "entity_id"), nil
}

// FactQuery filters hyperedges by participating entities and spatiotemporal
// validity. AtTime is shorthand for a containment instant and only applies
// when neither interval bound is set.
type FactQuery struct {
	Subjects []string
	Objects  []string
	Entities []string

	StartTime *string
	EndTime   *string
	AtTime    *string

	LocationNames   []string
	AreaCoordinates []types.Position

	IncludeSpatiallyUnconstrained  bool
	IncludeTemporallyUnconstrained bool

	// Limit caps the result set; zero means the default of 100.
	Limit int
}

// FactView is one fact in the tool-result shape.
type FactView struct {
	ID                string                   `json:"id"`
	RelationType      string                   `json:"relation_type"`
	Subjects          []string                 `json:"subjects"`
	Objects           []string                 `json:"objects"`
	TemporalIntervals []types.TemporalInterval `json:"temporal_intervals"`
	SpatialContexts   []SpatialSummary         `json:"spatial_contexts"`
}

// QueryFacts runs the spatiotemporal pre-filter and then applies the entity
// filters as existential subqueries.
func (s *Store) QueryFacts(ctx context.Context, q FactQuery) ([]FactView, error) {
	start, end := q.StartTime, q.EndTime
	if q.AtTime != nil && start == nil && end == nil {
		start, end = q.AtTime, q.AtTime
	}

	filter := SpatiotemporalFilter{
		StartTime:                      start,
		EndTime:                        end,
		LocationNames:                  q.LocationNames,
		LocationCoordinates:            q.AreaCoordinates,
		IncludeSpatiallyUnconstrained:  q.IncludeSpatiallyUnconstrained,
		IncludeTemporallyUnconstrained: q.IncludeTemporallyUnconstrained,
	}

	params := map[string]any{}
	var conds []string
	if !filter.empty() {
		ids, err := s.QuerySpatiotemporal(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []FactView{}, nil
		}
		conds = append(conds, "h.id IN $hyperedge_ids")
		params["hyperedge_ids"] = ids
	}

	if len(q.Subjects) > 0 {
		conds = append(conds, "EXISTS { MATCH (h)-[:CONNECTS {role: 'subject'}]->(ns:Node) WHERE ns.id IN $subjects }")
		params["subjects"] = q.Subjects
	}
	if len(q.Objects) > 0 {
		conds = append(conds, "EXISTS { MATCH (h)-[:CONNECTS {role: 'object'}]->(no:Node) WHERE no.id IN $objects }")
		params["objects"] = q.Objects
	}
	if len(q.Entities) > 0 {
		conds = append(conds, "EXISTS { MATCH (h)-[:CONNECTS]->(ne:Node) WHERE ne.id IN $entities }")
		params["entities"] = q.Entities
	}

	parts := []string{"MATCH (h:Hyperedge)"}
	if len(conds) > 0 {
		parts = append(parts, "WHERE "+strings.Join(conds, " AND "))
	}
	parts = append(parts,
		"OPTIONAL MATCH (h)-[:CONNECTS {role: 'subject'}]->(s:Node)",
		"OPTIONAL MATCH (h)-[:CONNECTS {role: 'object'}]->(o:Node)",
		"OPTIONAL MATCH (h)-[:VALID_IN]->(c:Context)",
		"WITH h, collect(DISTINCT s) AS subject_nodes, collect(DISTINCT o) AS object_nodes, collect(DISTINCT c) AS contexts",
		"RETURN h, subject_nodes, object_nodes, contexts",
		"ORDER BY h.id",
		"LIMIT $limit")
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	params["limit"] = limit

	recs, err := s.readRecords(ctx, strings.Join(parts, "\n"), params)
	if err != nil {
		return nil, err
	}

	facts := make([]FactView, 0, len(recs))
	for _, rec := range recs {
		props := nodeProps(recordValue(rec, "h"))
		fact := FactView{
			Subjects:          nodeIDs(recordValue(rec, "subject_nodes")),
			Objects:           nodeIDs(recordValue(rec, "object_nodes")),
			TemporalIntervals: []types.TemporalInterval{},
			SpatialContexts:   []SpatialSummary{},
		}
		fact.ID, _ = props["id"].(string)
		fact.RelationType, _ = props["relation_type"].(string)
		if fact.RelationType == "" {
			fact.RelationType = "unknown"
		}

		contexts, _ := recordValue(rec, "contexts").([]any)
		for _, item := range contexts {
			cp := nodeProps(item)
			from := toStringPtr(cp["from_time"])
			to := toStringPtr(cp["to_time"])
			if from != nil || to != nil {
				fact.TemporalIntervals = append(fact.TemporalIntervals, types.TemporalInterval{StartTime: from, EndTime: to})
			}
			if name, ok := cp["location_name"].(string); ok && name != "" {
				fact.SpatialContexts = append(fact.SpatialContexts, SpatialSummary{Name: name})
			}
			if coords := coordinateValue(cp["coordinates"]); coords != nil {
				fact.SpatialContexts = append(fact.SpatialContexts, SpatialSummary{Coordinates: coords})
			}
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func collectIDs(recs []*db.Record, key string) []string {
	out := make([]string, 0, len(recs))
	seen := map[string]struct{}{}
	for _, rec := range recs {
		id, _ := recordValue(rec, key).(string)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SpatialHyperedge is one hyperedge with its resolvable geometries, the
// shape the map view plots.
type SpatialHyperedge struct {
	Subjects        []string               `json:"subjects"`
	Objects         []string               `json:"objects"`
	RelationType    string                 `json:"relation_type"`
	SpatialContexts []types.SpatialContext `json:"spatial_contexts"`
}

// SpatialHyperedges returns the hyperedges that carry at least one geometry,
// with point coordinates unpacked and polygon JSON parsed.
func (s *Store) SpatialHyperedges(ctx context.Context) ([]SpatialHyperedge, error) {
	recs, err := s.readRecords(ctx, `
		MATCH (h:Hyperedge)
		OPTIONAL MATCH (h)-[:CONNECTS {role: 'subject'}]->(sn:Node)
		OPTIONAL MATCH (h)-[:CONNECTS {role: 'object'}]->(on:Node)
		OPTIONAL MATCH (h)-[:VALID_IN]->(c:Context)
		WITH h, collect(DISTINCT sn) AS subject_nodes, collect(DISTINCT on) AS object_nodes, collect(DISTINCT c) AS contexts
		RETURN h.relation_type AS relation_type, subject_nodes, object_nodes, contexts
		ORDER BY h.id`, nil)
	if err != nil {
		return nil, err
	}

	edges := []SpatialHyperedge{}
	for _, rec := range recs {
		var geoms []types.SpatialContext
		ctxs, _ := recordValue(rec, "contexts").([]any)
		for _, c := range ctxs {
			props := nodeProps(c)
			sc, ok := spatialFromStored(map[string]any{
				"name":        props["location_name"],
				"type":        props["spatial_type"],
				"coordinates": props["coordinates"],
			})
			if !ok {
				continue
			}
			if sc.Point == nil && len(sc.Polygon) == 0 && len(sc.MultiPolygon) == 0 {
				continue
			}
			geoms = append(geoms, sc)
		}
		if len(geoms) == 0 {
			continue
		}
		relation, _ := recordValue(rec, "relation_type").(string)
		edges = append(edges, SpatialHyperedge{
			Subjects:        nodeIDs(recordValue(rec, "subject_nodes")),
			Objects:         nodeIDs(recordValue(rec, "object_nodes")),
			RelationType:    relation,
			SpatialContexts: geoms,
		})
	}
	return edges, nil
}
