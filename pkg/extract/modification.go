package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// RawFieldChanges carries the corrected values of a modification before
// geocoding. Spatial contexts are bare location names.
type RawFieldChanges struct {
	Subjects          []string                 `json:"subjects,omitempty"`
	Objects           []string                 `json:"objects,omitempty"`
	RelationType      string                   `json:"relation_type,omitempty"`
	TemporalIntervals []types.TemporalInterval `json:"temporal_intervals,omitempty"`
	SpatialContexts   []string                 `json:"spatial_contexts,omitempty"`
}

// RawModification is a correction to an existing fact as extracted from
// text, before spatial expansion.
type RawModification struct {
	FactType       string          `json:"fact_type"`
	AffectedFact   types.FactRef   `json:"affected_fact"`
	ModifyFieldsTo RawFieldChanges `json:"modify_fields_to"`
}

const modificationSystemPrompt = `You are a data extraction agent.
Your task is to parse sentences that describe corrections or changes to temporal facts
and output structured JSON describing the modification.

### TEMPORAL FACT STRUCTURE
A temporal_fact has these fields:
- type: always "temporal_fact"
- subjects: [string, ...]
- objects: [string, ...] (can be empty array [] if no objects are given. Times and locations are NOT objects.)
- relation_type: string (EXACTLY ONE, present tense singular form)
- temporal_intervals: list of {start_time, end_time}
- spatial_contexts: [string, ...] (location name(s))

### MODIFICATION RULES
1. Always set "fact_type" = "modification".
2. "affected_fact" should identify the original fact **only by subjects, objects, relation_type**.
   - Do NOT include temporal_intervals or spatial_contexts here.
3. "modify_fields_to" = dictionary of only the fields to modify, and the values to set them to.
   - Keys: any of ["subjects", "objects", "relation_type", "temporal_intervals", "spatial_contexts"].
   - Values: the corrected version(s) of those fields.
4. Only include the fields that actually change. Do not repeat unchanged fields.
   - Example: if only the end_time changes, include just {"end_time": "..."} inside temporal_intervals.
   - Do NOT set a field to null unless the change is explicitly "field_name becomes unknown".
5. relation_type must always be a single string.
6. subjects/objects can be one or more.
7. If multiple corrections appear, output multiple modification objects.
8. Always output an array of modification objects, even if there is only one.

### EXAMPLES
Input: "Actually, John likes magazines, not books."
Output:
[
    {
        "fact_type": "modification",
        "affected_fact": {
            "fact_type": "temporal_fact",
            "subjects": ["John"],
            "objects": ["books"],
            "relation_type": "likes"
        },
        "modify_fields_to": {
            "objects": ["magazines"]
        }
    }
]

Input: "Correction: John died in 1996, not 1995."
Output:
[
    {
        "fact_type": "modification",
        "affected_fact": {
            "fact_type": "temporal_fact",
            "subjects": ["John"],
            "objects": [],
            "relation_type": "died"
        },
        "modify_fields_to": {
            "temporal_intervals": [
                {"start_time": "1996-01-01T00:00:00", "end_time": "1996-12-31T23:59:59"}
            ]
        }
    }
]

Input: "Correction: Tom studies Physics until 2026, not 2025."
Output:
[
    {
        "fact_type": "modification",
        "affected_fact": {
            "fact_type": "temporal_fact",
            "subjects": ["Tom"],
            "objects": ["Physics"],
            "relation_type": "studies"
        },
        "modify_fields_to": {
            "temporal_intervals": [
                {"end_time": "2025-12-31T23:59:59"}
            ]
        }
    }
]`

var modificationSchema = json.RawMessage(`{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "fact_type": {"type": "string", "enum": ["modification"]},
      "affected_fact": {
        "type": "object",
        "properties": {
          "subjects": {"type": "array", "items": {"type": "string"}},
          "objects": {"type": "array", "items": {"type": "string"}},
          "relation_type": {"type": "string"}
        },
        "required": ["subjects", "objects", "relation_type"]
      },
      "modify_fields_to": {
        "type": "object",
        "additionalProperties": true
      }
    },
    "required": ["fact_type", "affected_fact", "modify_fields_to"]
  }
}`)

// ModificationExtractor parses correction sentences into structured
// modifications.
type ModificationExtractor struct {
	llm    nlp.Client
	model  string
	logger *slog.Logger
}

// NewModificationExtractor creates a modification extractor using the given
// model.
func NewModificationExtractor(llm nlp.Client, model string, logger *slog.Logger) *ModificationExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModificationExtractor{llm: llm, model: model, logger: logger}
}

// Extract parses modification text into raw modifications. Spatial names in
// modify_fields_to stay unresolved; the caller geocodes them.
func (e *ModificationExtractor) Extract(ctx context.Context, modificationText string) ([]RawModification, error) {
	resp, err := e.llm.ChatWithStructuredOutput(ctx, e.model, []types.Message{
		nlp.NewSystemMessage(modificationSystemPrompt),
		nlp.NewUserMessage("Modification text:\n" + modificationText),
	}, &nlp.ResponseSchema{Name: "modification_schema", Schema: modificationSchema})
	if err != nil {
		return nil, fmt.Errorf("modification extraction failed: %w", err)
	}

	var modifications []RawModification
	if err := nlp.DecodeJSON(resp.Content, &modifications); err != nil {
		return nil, fmt.Errorf("parsing extracted modifications: %w", err)
	}
	return modifications, nil
}
