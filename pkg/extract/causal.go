package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// BuildStateSkeletons derives one empty state-change event per temporal fact.
// The causal fields are filled in by the LLM afterwards.
func BuildStateSkeletons(facts []types.Fact) []types.StateFact {
	skeletons := make([]types.StateFact, 0, len(facts))
	for _, fact := range facts {
		skeletons = append(skeletons, types.StateFact{
			FactType: types.FactTypeStateChange,
			AffectedFact: types.FactRef{
				Subjects:     fact.Subjects,
				Objects:      fact.Objects,
				RelationType: fact.RelationType,
			},
			CausedBy: [][]types.CauseRef{},
			Causes:   []types.EffectRef{},
		})
	}
	return skeletons
}

const causalSystemPrompt = `You are a data extraction agent.
Your job is to complete the causality fields in the partial structured state facts
by analyzing the input text.

RULES:
1. Do not change the structure of the input facts — only fill in the empty caused_by and causes fields IF there is a genuine causality link.
2. Keep "affected_fact" exactly as provided.
3. Normalize to only positive causality (what makes facts True and what they cause when True). A certain fact being True can cause an arbitrary number of things to either happen (become True) or not happen (become False).
4. To reference a fact, use the exact subjects, objects, and relation_type from the input including capitalization if present.
5. Field definitions:
   - caused_by: list of lists. [[A], [B, C]] means "A alone OR (B and C together)".
       Each reference has: subjects, objects, relation_type, triggered_by_state (True/False).
   - causes: list of entries describing what this fact being True causes.
       Each entry has: subjects, objects, relation_type, triggers_state (True/False),
       additional_required_states (list of extra conditions, can be empty).
6. If no causes or causes found, return [] for those fields. You MUST leave caused_by and/or causes empty when there is no genuine causality link.
7. Intransitive verbs: If a fact has no objects (e.g., "John dies"), set objects to an empty array [] in affected_fact and in any fact references inside caused_by/causes. Do not omit the objects field.
8. Return ONLY the completed JSON array, no commentary.

EXAMPLE INPUT:
whole_text: "Graduating from university caused Will to work for the Imperial Department of Computing from 2020 until 2025."
partial_structured_state_facts: [
    {
        "fact_type": "state_change_event",
        "affected_fact": {
            "subjects": ["Will"],
            "objects": ["university"],
            "relation_type": "graduates from"
        },
        "caused_by": [],
        "causes": []
    },
    {
        "fact_type": "state_change_event",
        "affected_fact": {
            "subjects": ["Will"],
            "objects": ["Imperial Department of Computing"],
            "relation_type": "works for"
        },
        "caused_by": [],
        "causes": []
    }
]

EXAMPLE OUTPUT:
[
    {
        "fact_type": "state_change_event",
        "affected_fact": {
            "subjects": ["Will"],
            "objects": ["university"],
            "relation_type": "graduates from"
        },
        "caused_by": [[]],
        "causes": [
            {
                "subjects": ["Will"],
                "objects": ["Imperial Department of Computing"],
                "relation_type": "works for",
                "triggers_state": true,
                "additional_required_states": []
            }
        ]
    },
    {
        "fact_type": "state_change_event",
        "affected_fact": {
            "subjects": ["Will"],
            "objects": ["Imperial Department of Computing"],
            "relation_type": "works for"
        },
        "caused_by": [
            [
                {
                    "subjects": ["Will"],
                    "objects": ["university"],
                    "relation_type": "graduates from",
                    "triggered_by_state": true
                }
            ]
        ],
        "causes": []
    }
]`

var stateChangeEventSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "state_facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "fact_type": {"type": "string", "enum": ["state_change_event"]},
          "affected_fact": {
            "type": "object",
            "properties": {
              "subjects": {"type": "array", "items": {"type": "string"}},
              "objects": {"type": "array", "items": {"type": "string"}},
              "relation_type": {"type": "string"}
            },
            "required": ["subjects", "objects", "relation_type"]
          },
          "caused_by": {
            "type": "array",
            "items": {
              "type": "array",
              "items": {
                "type": "object",
                "properties": {
                  "subjects": {"type": "array", "items": {"type": "string"}},
                  "objects": {"type": "array", "items": {"type": "string"}},
                  "relation_type": {"type": "string"},
                  "triggered_by_state": {"type": "boolean"}
                },
                "required": ["subjects", "objects", "relation_type", "triggered_by_state"]
              }
            }
          },
          "causes": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "subjects": {"type": "array", "items": {"type": "string"}},
                "objects": {"type": "array", "items": {"type": "string"}},
                "relation_type": {"type": "string"},
                "triggers_state": {"type": "boolean"},
                "additional_required_states": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "properties": {
                      "subjects": {"type": "array", "items": {"type": "string"}},
                      "objects": {"type": "array", "items": {"type": "string"}},
                      "relation_type": {"type": "string"},
                      "state": {"type": "boolean"}
                    },
                    "required": ["subjects", "objects", "relation_type", "state"]
                  }
                }
              },
              "required": ["subjects", "objects", "relation_type", "triggers_state", "additional_required_states"]
            }
          }
        },
        "required": ["fact_type", "affected_fact", "caused_by", "causes"]
      }
    }
  },
  "required": ["state_facts"]
}`)

// CausalInferer fills the causal fields of state-change skeletons by reading
// the whole input text.
type CausalInferer struct {
	llm    nlp.Client
	model  string
	logger *slog.Logger
}

// NewCausalInferer creates a causal inferer using the given model.
func NewCausalInferer(llm nlp.Client, model string, logger *slog.Logger) *CausalInferer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CausalInferer{llm: llm, model: model, logger: logger}
}

// Infer completes the caused_by and causes fields of the skeleton state
// facts against the whole text. On failure the skeletons are returned
// unchanged so downstream writes still record the state events.
func (c *CausalInferer) Infer(ctx context.Context, wholeText string, skeletons []types.StateFact) []types.StateFact {
	if len(skeletons) == 0 {
		return skeletons
	}

	partial, err := json.Marshal(skeletons)
	if err != nil {
		c.logger.Warn("marshalling state skeletons failed", "error", err)
		return skeletons
	}

	userPrompt := fmt.Sprintf("Input text:\n%s\n\nPartial structured state facts:\n%s", wholeText, partial)

	resp, err := c.llm.ChatWithStructuredOutput(ctx, c.model, []types.Message{
		nlp.NewSystemMessage(causalSystemPrompt),
		nlp.NewUserMessage(userPrompt),
	}, &nlp.ResponseSchema{Name: "state_change_event_schema", Schema: stateChangeEventSchema})
	if err != nil {
		c.logger.Warn("causal inference failed, keeping empty causality", "error", err)
		return skeletons
	}

	var parsed struct {
		StateFacts []types.StateFact `json:"state_facts"`
	}
	if err := nlp.DecodeJSON(resp.Content, &parsed); err != nil {
		c.logger.Warn("parsing causal inference response failed", "error", err)
		return skeletons
	}
	if len(parsed.StateFacts) == 0 {
		return skeletons
	}
	return parsed.StateFacts
}
