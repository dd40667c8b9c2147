package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrNoSubjects      = errors.New("fact must have at least one subject")
	ErrEmptyRelation   = errors.New("relation_type cannot be empty")
	ErrUnknownFactType = errors.New("unknown fact_type")
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// Fact type discriminators as they appear on the wire.
const (
	FactTypeTemporal     = "temporal_fact"
	FactTypeStateChange  = "state_change_event"
	FactTypeModification = "modification"
)

// Geometry types for spatial contexts.
const (
	GeometryPoint        = "Point"
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
	GeometryUnknown      = "unknown"
)

// Position is a [longitude, latitude] pair.
type Position [2]float64

// Lon returns the longitude component.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Position) Lat() float64 { return p[1] }

// TemporalInterval bounds the validity of a fact in time. A bound is either
// an ISO-8601 timestamp, a short descriptive string ("start of the wedding"),
// or nil when unknown.
type TemporalInterval struct {
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// SpatialContext is a named geometry attached to a fact. Exactly one of
// Point, Polygon, MultiPolygon is set according to Type; a Point context with
// a nil Point is a name that could not be geocoded.
type SpatialContext struct {
	Name         string
	Type         string
	Point        *Position
	Polygon      [][]Position
	MultiPolygon [][][]Position
}

type spatialContextJSON struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON emits the wire form {name, type, coordinates}.
func (s SpatialContext) MarshalJSON() ([]byte, error) {
	out := spatialContextJSON{Name: s.Name, Type: s.Type}
	var coords any
	switch s.Type {
	case GeometryPoint:
		if s.Point != nil {
			coords = *s.Point
		}
	case GeometryPolygon:
		coords = s.Polygon
	case GeometryMultiPolygon:
		coords = s.MultiPolygon
	}
	if coords != nil {
		raw, err := json.Marshal(coords)
		if err != nil {
			return nil, err
		}
		out.Coordinates = raw
	} else {
		out.Coordinates = json.RawMessage("null")
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the wire form {name, type, coordinates}.
func (s *SpatialContext) UnmarshalJSON(data []byte) error {
	var in spatialContextJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Name = in.Name
	s.Type = in.Type
	s.Point = nil
	s.Polygon = nil
	s.MultiPolygon = nil
	if len(in.Coordinates) == 0 || string(in.Coordinates) == "null" {
		return nil
	}
	switch in.Type {
	case GeometryPoint:
		var p Position
		if err := json.Unmarshal(in.Coordinates, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		s.Point = &p
	case GeometryPolygon:
		if err := json.Unmarshal(in.Coordinates, &s.Polygon); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
	case GeometryMultiPolygon:
		if err := json.Unmarshal(in.Coordinates, &s.MultiPolygon); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
	}
	return nil
}

// CoordinateJSON renders the geometry coordinates as minified JSON, suitable
// for storing polygons as a string property. Two identical geometries always
// produce byte-identical output.
func (s SpatialContext) CoordinateJSON() (string, error) {
	switch s.Type {
	case GeometryPolygon:
		raw, err := json.Marshal(s.Polygon)
		return string(raw), err
	case GeometryMultiPolygon:
		raw, err := json.Marshal(s.MultiPolygon)
		return string(raw), err
	default:
		return "", fmt.Errorf("%w: no JSON form for type %q", ErrInvalidGeometry, s.Type)
	}
}

// Fact is a temporal fact: a typed relation among one or more subjects and
// zero or more objects, valid in a set of spatiotemporal contexts.
type Fact struct {
	FactType          string             `json:"fact_type"`
	Subjects          []string           `json:"subjects"`
	Objects           []string           `json:"objects"`
	RelationType      string             `json:"relation_type"`
	TemporalIntervals []TemporalInterval `json:"temporal_intervals"`
	SpatialContexts   []SpatialContext   `json:"spatial_contexts"`
}

// Validate checks the minimum shape for a fact to enter the graph.
func (f *Fact) Validate() error {
	if len(f.Subjects) == 0 {
		return ErrNoSubjects
	}
	if f.RelationType == "" {
		return ErrEmptyRelation
	}
	return nil
}

// LocationNames returns the distinct location names of the fact's spatial
// contexts, in first-seen order.
func (f *Fact) LocationNames() []string {
	seen := make(map[string]struct{}, len(f.SpatialContexts))
	names := make([]string, 0, len(f.SpatialContexts))
	for _, sc := range f.SpatialContexts {
		if sc.Name == "" {
			continue
		}
		if _, ok := seen[sc.Name]; ok {
			continue
		}
		seen[sc.Name] = struct{}{}
		names = append(names, sc.Name)
	}
	return names
}

// FactRef identifies an already-asserted fact by its subject set, object set
// and relation. Causal references and modifications locate hyperedges this way.
type FactRef struct {
	Subjects     []string `json:"subjects"`
	Objects      []string `json:"objects"`
	RelationType string   `json:"relation_type"`
}

// CauseRef is one conjunct in a caused_by group.
type CauseRef struct {
	FactRef
	TriggeredByState bool `json:"triggered_by_state"`
}

// RequiredState is an extra conjunctive precondition on an effect.
type RequiredState struct {
	FactRef
	State bool `json:"state"`
}

// EffectRef is one entry in a state fact's causes list.
type EffectRef struct {
	FactRef
	TriggersState            bool            `json:"triggers_state"`
	AdditionalRequiredStates []RequiredState `json:"additional_required_states"`
}

// StateFact records the causal structure around one temporal fact. CausedBy
// is a disjunction of conjunctions: [[A], [B, C]] reads "A alone, or B and C
// together".
type StateFact struct {
	FactType     string       `json:"fact_type"`
	AffectedFact FactRef      `json:"affected_fact"`
	CausedBy     [][]CauseRef `json:"caused_by"`
	Causes       []EffectRef  `json:"causes"`
}

// Validate checks the minimum shape for a state fact.
func (s *StateFact) Validate() error {
	if len(s.AffectedFact.Subjects) == 0 {
		return ErrNoSubjects
	}
	if s.AffectedFact.RelationType == "" {
		return ErrEmptyRelation
	}
	return nil
}

// FieldChanges carries the corrected values of a modification. A nil slice
// (or empty string) means the field is unchanged.
type FieldChanges struct {
	Subjects          []string           `json:"subjects,omitempty"`
	Objects           []string           `json:"objects,omitempty"`
	RelationType      string             `json:"relation_type,omitempty"`
	TemporalIntervals []TemporalInterval `json:"temporal_intervals,omitempty"`
	SpatialContexts   []SpatialContext   `json:"spatial_contexts,omitempty"`
}

// Modification is a retroactive correction to an already-asserted fact.
type Modification struct {
	FactType       string       `json:"fact_type"`
	AffectedFact   FactRef      `json:"affected_fact"`
	ModifyFieldsTo FieldChanges `json:"modify_fields_to"`
}

// Validate checks the minimum shape for a modification.
func (m *Modification) Validate() error {
	if len(m.AffectedFact.Subjects) == 0 {
		return ErrNoSubjects
	}
	if m.AffectedFact.RelationType == "" {
		return ErrEmptyRelation
	}
	return nil
}
