package chronotope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soundprediction/chronotope/pkg/extract"
	"github.com/soundprediction/chronotope/pkg/graph"
	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

const askSystemPrompt = "You are a function-calling assistant that can call tools to answer questions about a graph. " +
	"Choose a single tool and provide arguments as needed. " +
	"When deciding spatial/temporal unconstrained flags: If a question asks with certainty, e.g. 'Show me everyone in South Africa' or 'Who is alive in 2020?', then do NOT include unconstrained results (set include_spatially_unconstrained=false and include_temporally_unconstrained=false). " +
	"If a question is hypothetical or possibility-based (e.g. 'Who could have been alive in 2020?' or 'Who might be in South Africa?'), then include unconstrained results as well (set include_spatially_unconstrained=true and include_temporally_unconstrained=true)."

const askValidationPrompt = "You validate whether the latest tool result answers the original user question. " +
	"Respond strictly as JSON with keys: valid (boolean) and descriptor (string)."

var askValidationSchema = &nlp.ResponseSchema{
	Name: "ask_validation_schema",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"valid": {"type": "boolean"},
			"descriptor": {"type": "string"}
		},
		"required": ["valid", "descriptor"],
		"additionalProperties": false
	}`),
}

// QueryTools are the graph query tools offered to the model during Ask.
func QueryTools() []nlp.Tool {
	return []nlp.Tool{
		{
			Name:        "get_entities_by_relation",
			Description: "Return distinct entity IDs that participate in hyperedges whose relation_type matches the provided relation phrase (case-insensitive, substring allowed).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"relation": {
						"type": "string",
						"description": "The relation keyword or phrase to search for, e.g. 'study' or 'studies'."
					}
				},
				"required": ["relation"],
				"additionalProperties": false
			}`),
		},
		{
			Name:        "query_facts",
			Description: "Query hyperedges (facts) with optional filters for entities (subjects/objects/any), temporal validity, and spatial context by name or polygon area.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"subjects": {"type": "array", "items": {"type": "string"}, "description": "Subject entity IDs to include (any match)."},
					"objects": {"type": "array", "items": {"type": "string"}, "description": "Object entity IDs to include (any match)."},
					"entities": {"type": "array", "items": {"type": "string"}, "description": "Entity IDs appearing in either role (any match)."},
					"start_time": {"type": ["string", "null"], "description": "Start of validity interval (ISO-8601)."},
					"end_time": {"type": ["string", "null"], "description": "End of validity interval (ISO-8601)."},
					"at_time": {"type": ["string", "null"], "description": "Instant that must lie within the fact's interval (ISO-8601)."},
					"location_names": {"type": "array", "items": {"type": "string"}, "description": "Location names for contexts (any match)."},
					"area_coordinates": {"type": "array", "items": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2}, "description": "Polygon as list of [lon, lat] pairs (>=3)."},
					"include_spatially_unconstrained": {"type": "boolean", "description": "When spatial filters are provided, include facts without spatial context."},
					"include_temporally_unconstrained": {"type": "boolean", "description": "When temporal filters are provided, include facts with unknown temporal information."},
					"limit": {"type": "integer", "description": "Max number of facts to return (default 100)."}
				},
				"additionalProperties": false
			}`),
		},
	}
}

// ToolTrace records one tool invocation inside an Ask loop.
type ToolTrace struct {
	Loop   int            `json:"loop"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result any            `json:"result"`
}

// AskResult is the outcome of one question.
type AskResult struct {
	Valid      bool        `json:"valid"`
	Descriptor string      `json:"descriptor"`
	Trace      []ToolTrace `json:"tool_trace"`
}

// AskAnswer pairs a question from a multi-question text with its result.
type AskAnswer struct {
	Question string `json:"question"`
	AskResult
}

type askValidation struct {
	Valid      bool   `json:"valid"`
	Descriptor string `json:"descriptor"`
}

// Ask answers a natural language question by letting the model pick graph
// query tools, executing them and validating the result, looping with the
// validator's feedback until it passes or the loop budget runs out.
func (c *Client) Ask(ctx context.Context, question string, maxLoops int) (*AskResult, error) {
	return c.runAskLoop(ctx, question, "", maxLoops)
}

// AskMulti splits a text into sentences and answers each as its own
// question, with the whole text supplied to the model as context.
func (c *Client) AskMulti(ctx context.Context, text string, maxLoops int) ([]AskAnswer, error) {
	var answers []AskAnswer
	for _, sentence := range extract.SplitIntoSentences(text) {
		result, err := c.runAskLoop(ctx, sentence, text, maxLoops)
		if err != nil {
			return answers, err
		}
		answers = append(answers, AskAnswer{Question: sentence, AskResult: *result})
	}
	return answers, nil
}

func (c *Client) runAskLoop(ctx context.Context, question, fullContext string, maxLoops int) (*AskResult, error) {
	loops := maxLoops
	if loops < 1 {
		loops = 1
	}
	if loops > 5 {
		loops = 5
	}

	model := c.config.LLM.SmallModel
	tools := QueryTools()
	trace := []ToolTrace{}
	intermediate := ""

	for loop := 0; loop < loops; loop++ {
		messages := []types.Message{
			nlp.NewSystemMessage(askSystemPrompt),
			nlp.NewUserMessage(question),
		}
		if fullContext != "" {
			messages = append(messages, nlp.NewSystemMessage("Full input context: "+fullContext))
		}
		if intermediate != "" {
			messages = append(messages, nlp.NewSystemMessage("Intermediate guidance: "+intermediate))
		}

		resp, err := c.llm.ChatWithTools(ctx, model, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("tool selection failed: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return &AskResult{Descriptor: "Model did not select a tool", Trace: trace}, nil
		}
		call := resp.ToolCalls[0]

		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}

		result := c.executeTool(ctx, call.Name, call.Arguments)
		trace = append(trace, ToolTrace{Loop: loop, Tool: call.Name, Args: args, Result: result})

		toolPayload, _ := json.Marshal(map[string]any{"tool": call.Name, "args": args, "result": result})
		historyPayload, _ := json.Marshal(map[string]any{"history": trace})
		validationMessages := []types.Message{
			nlp.NewSystemMessage(askValidationPrompt),
			nlp.NewUserMessage(question),
			nlp.NewSystemMessage(string(toolPayload)),
			nlp.NewSystemMessage(string(historyPayload)),
		}

		vresp, err := c.llm.ChatWithStructuredOutput(ctx, model, validationMessages, askValidationSchema)
		if err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		var validation askValidation
		if err := nlp.DecodeJSON(vresp.Content, &validation); err != nil {
			validation = askValidation{Descriptor: "Validator returned invalid JSON"}
		}

		if validation.Valid {
			return &AskResult{Valid: true, Descriptor: validation.Descriptor, Trace: trace}, nil
		}
		intermediate = validation.Descriptor
	}

	descriptor := intermediate
	if descriptor == "" {
		descriptor = "No valid answer found"
	}
	return &AskResult{Descriptor: descriptor, Trace: trace}, nil
}

type queryFactsArgs struct {
	Subjects                       []string    `json:"subjects"`
	Objects                        []string    `json:"objects"`
	Entities                       []string    `json:"entities"`
	StartTime                      *string     `json:"start_time"`
	EndTime                        *string     `json:"end_time"`
	AtTime                         *string     `json:"at_time"`
	LocationNames                  []string    `json:"location_names"`
	AreaCoordinates                [][]float64 `json:"area_coordinates"`
	IncludeSpatiallyUnconstrained  bool        `json:"include_spatially_unconstrained"`
	IncludeTemporallyUnconstrained bool        `json:"include_temporally_unconstrained"`
	Limit                          int         `json:"limit"`
}

// executeTool runs one named tool against the store. Failures are reported
// inside the result so the validator can react to them.
func (c *Client) executeTool(ctx context.Context, name, rawArgs string) map[string]any {
	switch name {
	case "get_entities_by_relation":
		var args struct {
			Relation string `json:"relation"`
		}
		if rawArgs != "" {
			_ = json.Unmarshal([]byte(rawArgs), &args)
		}
		if args.Relation == "" {
			return map[string]any{"entities": []string{}, "message": "Empty relation provided"}
		}
		entities, err := c.store.EntitiesByRelation(ctx, args.Relation)
		if err != nil {
			return map[string]any{"entities": []string{}, "error": fmt.Sprintf("Neo4j query failed: %v", err)}
		}
		if entities == nil {
			entities = []string{}
		}
		return map[string]any{"entities": entities}

	case "query_facts":
		var args queryFactsArgs
		if rawArgs != "" {
			_ = json.Unmarshal([]byte(rawArgs), &args)
		}
		q := graph.FactQuery{
			Subjects:                       args.Subjects,
			Objects:                        args.Objects,
			Entities:                       args.Entities,
			StartTime:                      args.StartTime,
			EndTime:                        args.EndTime,
			AtTime:                         args.AtTime,
			LocationNames:                  args.LocationNames,
			IncludeSpatiallyUnconstrained:  args.IncludeSpatiallyUnconstrained,
			IncludeTemporallyUnconstrained: args.IncludeTemporallyUnconstrained,
			Limit:                          args.Limit,
		}
		for _, pair := range args.AreaCoordinates {
			if len(pair) == 2 {
				q.AreaCoordinates = append(q.AreaCoordinates, types.Position{pair[0], pair[1]})
			}
		}
		facts, err := c.store.QueryFacts(ctx, q)
		if err != nil {
			return map[string]any{"facts": []graph.FactView{}, "error": fmt.Sprintf("Neo4j query failed: %v", err)}
		}
		return map[string]any{"facts": facts, "count": len(facts)}
	}
	return map[string]any{"error": "unknown tool: " + name}
}
