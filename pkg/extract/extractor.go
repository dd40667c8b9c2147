package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// RawFact is a temporal fact as extracted from text, before geocoding.
// Spatial contexts are bare location names; a nil entry means the sentence
// carried no location.
type RawFact struct {
	FactType          string                   `json:"fact_type"`
	Subjects          []string                 `json:"subjects"`
	Objects           []string                 `json:"objects"`
	RelationType      string                   `json:"relation_type"`
	TemporalIntervals []types.TemporalInterval `json:"temporal_intervals"`
	SpatialContexts   []*string                `json:"spatial_contexts"`
}

// LocationNames returns the non-nil, non-empty location names.
func (f *RawFact) LocationNames() []string {
	var names []string
	for _, sc := range f.SpatialContexts {
		if sc == nil {
			continue
		}
		if name := strings.TrimSpace(*sc); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Sanitise strips placeholder entities and relations so junk never enters the
// graph. Returns false when the fact should be dropped entirely: an empty,
// unknown or "?" relation, or no usable subjects. Objects may legitimately be
// empty for intransitive facts.
func (f *RawFact) Sanitise() bool {
	rel := strings.TrimSpace(f.RelationType)
	if rel == "" || strings.EqualFold(rel, "unknown") || rel == "?" {
		return false
	}
	f.RelationType = rel

	f.Subjects = cleanEntities(f.Subjects)
	if len(f.Subjects) == 0 {
		return false
	}
	f.Objects = cleanEntities(f.Objects)
	return true
}

func cleanEntities(entities []string) []string {
	var cleaned []string
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" || e == "?" || strings.EqualFold(e, "unknown") {
			continue
		}
		cleaned = append(cleaned, e)
	}
	return cleaned
}

const extractorSystemPrompt = `You are a data extraction agent.
Parse each sentence in the input text into structured temporal facts.

RULES:
1. Always set "fact_type" to "temporal_fact".
2. Extract all subjects (entities performing the action).
3. Extract all objects (entities receiving the action) - this can be an empty array [] if no object given e.g. for intransitive verbs in sentences like "John dies". Times and locations are NOT objects.
4. Extract the main verb (relation_type).
5. Subjects, relation and objects are colon-separated. You are given a sentence formatted as "[Subjects] : relation : [objects] ...":
   - Subjects are everything before the first colon.
   - relation_type is the text between the first and second colon.
   - Objects are everything after the second colon up to the first occurrence of " from " or " at " or sentence end. If nothing appears between the second colon and " from/at ", set objects to [].
   - Split multiple subjects/objects on the word "and" (the expansion format uses "and" to separate multiple entities) while preserving internal entity wording and articles. Do NOT split on "&"; treat "&" as part of an entity name and keep the entity intact (e.g., "Food from China, India & Japan" is ONE object string, not split by "&").
   - Do not treat temporal ("from ... to ...") or spatial ("at ...") phrases as objects.
5. For temporal_intervals:
   - Times can be ISO 8601 timestamps (YYYY-MM-DDTHH:MM:SS) or string descriptors, as given in input.
   - If only one side is given, set the other to null.
   - If no time info exists, set both start_time and end_time to null.
   - IMPORTANT: If a sentence mentions multiple time periods for the SAME action, combine them into ONE fact with multiple temporal intervals.
   - CRITICAL: Distinguish combinable vs paired intervals based on the presence of "and" between full pair blocks:
     - If times are listed consecutively without "and" (e.g., "from t1 ... from t2 ...") they are COMBINABLE with all listed locations.
     - If pairs are separated by "and" (e.g., "from t1 ... at L1 and from t2 ... at L2"), they are DISTINCT pairs that should NOT be cross-combined.
     - Assume all timestamps have been converted to UTC timezone already, do NOT convert timezones.
6. For spatial_contexts:
   - Extract each location explicitly mentioned after "at".
   - If no location is mentioned, return [null] (not "unknown").
   - Only include actual place names, never use placeholder text.
   - CRITICAL: If multiple locations are listed without "and" (e.g., "at L1 at L2"), treat them as COMBINABLE with all times in the sentence.
   - If full time-location pairs are separated by "and", keep them paired and do not cross-combine across the pairs.
7. One structured JSON object per sentence, even if the sentence mentions multiple time periods.
8. EXAMPLES:
   - "Marie Curie : wins : Nobel Prize for Physics from 1903 to 1911" → subjects: ["Marie Curie"], relation_type: "wins", objects: ["Nobel Prize for Physics"], temporal_intervals: two entries for 1903 and 1911
   - "Alice and Bob : faints : from 2020 to 2021 at the party" → subjects: ["Alice", "Bob"], objects: [], relation_type: "faints", spatial_contexts: ["the party"]
   - "The farmers' market : sets up : from 2025-10-07T11:00:00 to unknown from 2025-10-14T11:00:00 to unknown at Imperial College London" → temporal_intervals: two entries; spatial_contexts: ["Imperial College London"] (combinable)
   - "The lecture : can run : from 2025-10-01T17:00:00 to 2025-10-01T18:00:00 at London and from 2025-10-01T22:00:00 to 2025-10-01T23:00:00 at Bristol" → two DISTINCT pairs; represent as two context entries that must not be cross-combined.
`

var temporalFactSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "fact_type": {"type": "string", "enum": ["temporal_fact"]},
          "subjects": {"type": "array", "items": {"type": "string"}},
          "objects": {"type": "array", "items": {"type": "string"}},
          "relation_type": {"type": "string"},
          "temporal_intervals": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "start_time": {"type": ["string", "null"]},
                "end_time": {"type": ["string", "null"]}
              },
              "required": ["start_time", "end_time"]
            }
          },
          "spatial_contexts": {
            "type": "array",
            "items": {"type": ["string", "null"]}
          }
        },
        "required": ["fact_type", "subjects", "relation_type", "temporal_intervals", "spatial_contexts"]
      }
    }
  },
  "required": ["facts"]
}`)

// FactExtractor parses canonicalised sentences into structured temporal
// facts using a JSON-schema constrained completion.
type FactExtractor struct {
	llm    nlp.Client
	model  string
	logger *slog.Logger
}

// NewFactExtractor creates an extractor using the given model.
func NewFactExtractor(llm nlp.Client, model string, logger *slog.Logger) *FactExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactExtractor{llm: llm, model: model, logger: logger}
}

// Extract parses the canonicalised text into raw temporal facts. Coordinates
// are not resolved here; spatial contexts stay as location names.
func (e *FactExtractor) Extract(ctx context.Context, text string) ([]RawFact, error) {
	resp, err := e.llm.ChatWithStructuredOutput(ctx, e.model, []types.Message{
		nlp.NewSystemMessage(extractorSystemPrompt),
		nlp.NewUserMessage("Chunk to process:\n" + text),
	}, &nlp.ResponseSchema{Name: "temporal_fact_schema", Schema: temporalFactSchema})
	if err != nil {
		return nil, fmt.Errorf("fact extraction failed: %w", err)
	}

	var parsed struct {
		Facts []RawFact `json:"facts"`
	}
	if err := nlp.DecodeJSON(resp.Content, &parsed); err != nil {
		return nil, fmt.Errorf("parsing extracted facts: %w", err)
	}

	for i := range parsed.Facts {
		if parsed.Facts[i].FactType == "" {
			parsed.Facts[i].FactType = types.FactTypeTemporal
		}
	}
	return parsed.Facts, nil
}
