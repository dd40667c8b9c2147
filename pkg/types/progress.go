package types

// Progress event types.
const (
	EventInfo     = "info"
	EventStage    = "stage"
	EventComplete = "complete"
	EventError    = "error"
)

// Per-sentence pipeline stages, in state-machine order.
const (
	StageQueued        = "queued"
	StageTemporalStart = "temporal_start"
	StageTemporalDone  = "temporal_done"
	StageStructureDone = "structure_done"
	StageSpatialDone   = "spatial_done"
	StageGraphDone     = "graph_done"
	StageGraphFailed   = "graph_failed"
)

// ProgressEvent is one entry in the pipeline's ordered progress stream.
// Events for a single sentence follow the stage order above; events across
// sentences interleave freely.
type ProgressEvent struct {
	Type     string `json:"type"`
	Stage    string `json:"stage,omitempty"`
	Chunk    int    `json:"chunk,omitempty"`
	Sentence int    `json:"sentence,omitempty"`
	Message  string `json:"message"`
	Count    int    `json:"count,omitempty"`

	// Fact is set on graph_done events so in-process consumers can render
	// the committed fact; it never travels on the wire.
	Fact *Fact `json:"-"`
}
