// Package dto holds the request and response models of the HTTP API.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/types"
)

// Validation errors.
var (
	ErrEmptyText       = errors.New("text is required")
	ErrEmptySubjects   = errors.New("subjects cannot be empty")
	ErrEmptyRelation   = errors.New("relation_type cannot be empty")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrTextTooLong     = errors.New("text exceeds maximum length (1MB)")
	ErrTooManySpatial  = errors.New("spatial_contexts count exceeds maximum (100)")
	ErrTooManyEntities = errors.New("entity count exceeds maximum (100)")
)

// Field limits to prevent abuse.
const (
	MaxTextLength   = 1024 * 1024
	MaxEntityCount  = 100
	MaxSpatialCount = 100
)

// ErrorResponse is the error envelope for rejected requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ProcessTextRequest asks for a text to be run through the ingestion
// pipeline.
type ProcessTextRequest struct {
	Text      string `json:"text" binding:"required"`
	ChunkSize int    `json:"chunk_size"`
}

// Validate performs validation on ProcessTextRequest.
func (r *ProcessTextRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if len(r.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// ProcessTextResponse reports the outcome of a pipeline run.
type ProcessTextResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	FactsProcessed int    `json:"facts_processed"`
}

// AddHyperedgeRequest adds one prebuilt fact to the graph.
type AddHyperedgeRequest struct {
	Subjects          []string                 `json:"subjects" binding:"required"`
	Objects           []string                 `json:"objects"`
	RelationType      string                   `json:"relation_type" binding:"required"`
	TemporalIntervals []types.TemporalInterval `json:"temporal_intervals"`
	SpatialContexts   []types.SpatialContext   `json:"spatial_contexts"`
}

// Validate performs validation on AddHyperedgeRequest.
func (r *AddHyperedgeRequest) Validate() error {
	if len(r.Subjects) == 0 {
		return ErrEmptySubjects
	}
	if strings.TrimSpace(r.RelationType) == "" {
		return ErrEmptyRelation
	}
	if len(r.Subjects)+len(r.Objects) > MaxEntityCount {
		return ErrTooManyEntities
	}
	if len(r.SpatialContexts) > MaxSpatialCount {
		return ErrTooManySpatial
	}
	return nil
}

// Fact converts the request into the pipeline's fact shape.
func (r *AddHyperedgeRequest) Fact() types.Fact {
	return types.Fact{
		FactType:          types.FactTypeTemporal,
		Subjects:          r.Subjects,
		Objects:           r.Objects,
		RelationType:      r.RelationType,
		TemporalIntervals: r.TemporalIntervals,
		SpatialContexts:   r.SpatialContexts,
	}
}

// SpatialDatum is one plottable geometry extracted from an added hyperedge.
type SpatialDatum struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Coordinates any    `json:"coordinates"`
	HyperedgeID string `json:"hyperedge_id"`
}

// AddHyperedgeResponse reports the outcome of adding a hyperedge.
type AddHyperedgeResponse struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	HyperedgeID string         `json:"hyperedge_id,omitempty"`
	SpatialData []SpatialDatum `json:"spatial_data"`
}

// HyperstructureResponse wraps the visualisation payload.
type HyperstructureResponse struct {
	Status             string               `json:"status"`
	Message            string               `json:"message"`
	HyperstructureData *graph.Hyperstructure `json:"hyperstructure_data"`
}

// ExtractedSpatialResponse lists hyperedges that carry geometries.
type ExtractedSpatialResponse struct {
	Status          string                   `json:"status"`
	Message         string                   `json:"message"`
	Hyperedges      []graph.SpatialHyperedge `json:"hyperedges"`
	TotalHyperedges int                      `json:"total_hyperedges"`
}

// StatusResponse is the generic success/error envelope.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AskQueryRequest asks one natural language question.
type AskQueryRequest struct {
	Message  string `json:"message" binding:"required"`
	MaxLoops int    `json:"max_loops"`
}

// Validate performs validation on AskQueryRequest.
func (r *AskQueryRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// AskQueryResponse is the outcome of one question.
type AskQueryResponse struct {
	Status     string                `json:"status"`
	Valid      bool                  `json:"valid"`
	Descriptor string                `json:"descriptor"`
	ToolTrace  []chronotope.ToolTrace `json:"tool_trace"`
}

// MultiAskRequest asks every sentence of a text as its own question.
type MultiAskRequest struct {
	Text     string `json:"text" binding:"required"`
	MaxLoops int    `json:"max_loops"`
}

// Validate performs validation on MultiAskRequest.
func (r *MultiAskRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// MultiAskItem is one answered question from a multi-question text.
type MultiAskItem struct {
	Question   string                `json:"question"`
	Valid      bool                  `json:"valid"`
	Descriptor string                `json:"descriptor"`
	ToolTrace  []chronotope.ToolTrace `json:"tool_trace"`
}

// MultiAskResponse is the outcome of a multi-question text.
type MultiAskResponse struct {
	Status  string         `json:"status"`
	Results []MultiAskItem `json:"results"`
}
