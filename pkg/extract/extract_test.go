package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// stubLLM returns canned responses in order and records the calls it saw.
type stubLLM struct {
	responses []string
	err       error
	calls     int
	models    []string
	messages  [][]types.Message
}

func (s *stubLLM) next(model string, messages []types.Message) (*types.Response, error) {
	s.models = append(s.models, model)
	s.messages = append(s.messages, messages)
	if s.err != nil {
		return nil, s.err
	}
	content := ""
	if s.calls < len(s.responses) {
		content = s.responses[s.calls]
	}
	s.calls++
	return &types.Response{Content: content}, nil
}

func (s *stubLLM) Chat(_ context.Context, model string, messages []types.Message) (*types.Response, error) {
	return s.next(model, messages)
}

func (s *stubLLM) ChatWithStructuredOutput(_ context.Context, model string, messages []types.Message, _ *nlp.ResponseSchema) (*types.Response, error) {
	return s.next(model, messages)
}

func (s *stubLLM) ChatWithTools(_ context.Context, model string, messages []types.Message, _ []nlp.Tool) (*types.Response, error) {
	return s.next(model, messages)
}

func (s *stubLLM) Close() error { return nil }

func strPtr(s string) *string { return &s }

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"citations", "known for C++.[5] He lives here.[12]", "known for C++. He lives here."},
		{"whitespace", "a  b\t\tc\n\nd", "a b c d"},
		{"stray brackets", "before ] after", "before after"},
		{"circled letters", "Stroustrup ⓘ was born", "Stroustrup was born"},
		{"superscripts", "E = mc² holds", "E = mc holds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestSplitIntoSentences(t *testing.T) {
	got := SplitIntoSentences("John likes cats. Mary likes dogs! Do fish swim? ok")
	assert.Equal(t, []string{"John likes cats.", "Mary likes dogs!", "Do fish swim?"}, got)
}

func TestSplitIntoSentencesDropsShortFragments(t *testing.T) {
	got := SplitIntoSentences("Hi. A much longer sentence follows here.")
	assert.Equal(t, []string{"A much longer sentence follows here."}, got)
}

func TestSplitIntoChunks(t *testing.T) {
	text := "One sentence here. Two sentences here. Three sentences here. Four sentences here."
	chunks := SplitIntoChunks(text, 3)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "One sentence here. Two sentences here. Three sentences here.", chunks[0].Text)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "Four sentences here.", chunks[1].Text)
}

func TestClassifyByKeywords(t *testing.T) {
	classifier := NewClassifier(nil, "", false, nil)

	regular, modification := classifier.Classify(context.Background(),
		"John likes cats. Actually, John likes dogs. Mary lives in Leeds.")

	assert.Equal(t, "John likes cats. Mary lives in Leeds", regular)
	assert.Equal(t, "Actually, John likes dogs", modification)
}

func TestClassifyNoModifications(t *testing.T) {
	classifier := NewClassifier(nil, "", false, nil)

	regular, modification := classifier.Classify(context.Background(), "John likes cats.")
	assert.Equal(t, "John likes cats", regular)
	assert.Empty(t, modification)
}

func TestClassifyWithLLMRefinement(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"REGULAR:\nJohn likes cats.\n\nMODIFICATION:\nThe meeting was on Tuesday, not Monday.",
	}}
	classifier := NewClassifier(llm, "gpt-5-nano", true, nil)

	regular, modification := classifier.Classify(context.Background(),
		"John likes cats. The meeting was on Tuesday, not Monday.")

	assert.Equal(t, "John likes cats.", regular)
	assert.Equal(t, "The meeting was on Tuesday, not Monday.", modification)
	assert.Equal(t, []string{"gpt-5-nano"}, llm.models)
}

func TestClassifyFallsBackWhenLLMFails(t *testing.T) {
	llm := &stubLLM{err: errors.New("boom")}
	classifier := NewClassifier(llm, "gpt-5-nano", true, nil)

	regular, modification := classifier.Classify(context.Background(),
		"John likes cats. Correction, John likes dogs.")

	assert.Equal(t, "John likes cats", regular)
	assert.Equal(t, "Correction, John likes dogs", modification)
}

func TestCanonicalizerExpand(t *testing.T) {
	llm := &stubLLM{responses: []string{
		"```\nOutput: John : likes : Cats from unknown to unknown at unknown.\n```",
	}}
	c := NewCanonicalizer(llm, "gpt-5-mini", nil)

	got := c.Expand(context.Background(), "John likes cats.", "John likes cats.")
	assert.Equal(t, "John : likes : Cats from unknown to unknown at unknown.", got)

	require.Len(t, llm.messages, 1)
	msgs := llm.messages[0]
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[1].Content, "Current time context (UTC):")
	assert.Contains(t, msgs[2].Content, "Sentence to expand:\nJohn likes cats.")
}

func TestCanonicalizerExpandFailureKeepsSentence(t *testing.T) {
	llm := &stubLLM{err: errors.New("rate limit")}
	c := NewCanonicalizer(llm, "gpt-5-mini", nil)

	got := c.Expand(context.Background(), "John likes cats.", "John likes cats.")
	assert.Equal(t, "John likes cats.", got)
}

func TestRawFactSanitise(t *testing.T) {
	t.Run("drops unknown relation", func(t *testing.T) {
		fact := RawFact{Subjects: []string{"John"}, RelationType: "unknown"}
		assert.False(t, fact.Sanitise())
	})

	t.Run("drops question mark relation", func(t *testing.T) {
		fact := RawFact{Subjects: []string{"John"}, RelationType: "?"}
		assert.False(t, fact.Sanitise())
	})

	t.Run("drops fact with no usable subjects", func(t *testing.T) {
		fact := RawFact{Subjects: []string{"?", "unknown", " "}, RelationType: "likes"}
		assert.False(t, fact.Sanitise())
	})

	t.Run("cleans entities but keeps empty objects", func(t *testing.T) {
		fact := RawFact{
			Subjects:     []string{" John ", "?"},
			Objects:      []string{"unknown"},
			RelationType: " likes ",
		}
		require.True(t, fact.Sanitise())
		assert.Equal(t, []string{"John"}, fact.Subjects)
		assert.Empty(t, fact.Objects)
		assert.Equal(t, "likes", fact.RelationType)
	})
}

func TestRawFactLocationNames(t *testing.T) {
	fact := RawFact{SpatialContexts: []*string{strPtr("London"), nil, strPtr(" "), strPtr("Leeds")}}
	assert.Equal(t, []string{"London", "Leeds"}, fact.LocationNames())
}

func TestFactExtractor(t *testing.T) {
	llm := &stubLLM{responses: []string{`{
		"facts": [{
			"fact_type": "temporal_fact",
			"subjects": ["Marie Curie"],
			"objects": ["The Nobel Prize for Physics"],
			"relation_type": "wins",
			"temporal_intervals": [
				{"start_time": "1903-01-01T00:00:00", "end_time": "1903-12-31T23:59:59"}
			],
			"spatial_contexts": [null]
		}]
	}`}}
	extractor := NewFactExtractor(llm, "gpt-5-nano", nil)

	facts, err := extractor.Extract(context.Background(),
		"Marie Curie : wins : The Nobel Prize for Physics from 1903-01-01T00:00:00 to 1903-12-31T23:59:59 at unknown.")
	require.NoError(t, err)
	require.Len(t, facts, 1)

	fact := facts[0]
	assert.Equal(t, types.FactTypeTemporal, fact.FactType)
	assert.Equal(t, []string{"Marie Curie"}, fact.Subjects)
	assert.Equal(t, "wins", fact.RelationType)
	require.Len(t, fact.TemporalIntervals, 1)
	assert.Equal(t, "1903-01-01T00:00:00", *fact.TemporalIntervals[0].StartTime)
	require.Len(t, fact.SpatialContexts, 1)
	assert.Nil(t, fact.SpatialContexts[0])
	assert.Empty(t, fact.LocationNames())
}

func TestFactExtractorPropagatesError(t *testing.T) {
	llm := &stubLLM{err: errors.New("boom")}
	extractor := NewFactExtractor(llm, "gpt-5-nano", nil)

	_, err := extractor.Extract(context.Background(), "anything")
	assert.Error(t, err)
}

func TestModificationExtractor(t *testing.T) {
	llm := &stubLLM{responses: []string{`[
		{
			"fact_type": "modification",
			"affected_fact": {
				"fact_type": "temporal_fact",
				"subjects": ["John"],
				"objects": ["books"],
				"relation_type": "likes"
			},
			"modify_fields_to": {
				"objects": ["magazines"],
				"spatial_contexts": ["London"]
			}
		}
	]`}}
	extractor := NewModificationExtractor(llm, "gpt-5-nano", nil)

	mods, err := extractor.Extract(context.Background(), "Actually, John likes magazines in London, not books.")
	require.NoError(t, err)
	require.Len(t, mods, 1)

	mod := mods[0]
	assert.Equal(t, types.FactTypeModification, mod.FactType)
	assert.Equal(t, []string{"John"}, mod.AffectedFact.Subjects)
	assert.Equal(t, []string{"books"}, mod.AffectedFact.Objects)
	assert.Equal(t, "likes", mod.AffectedFact.RelationType)
	assert.Equal(t, []string{"magazines"}, mod.ModifyFieldsTo.Objects)
	assert.Equal(t, []string{"London"}, mod.ModifyFieldsTo.SpatialContexts)
}

func TestBuildStateSkeletons(t *testing.T) {
	facts := []types.Fact{
		{
			FactType:     types.FactTypeTemporal,
			Subjects:     []string{"Will"},
			Objects:      []string{"university"},
			RelationType: "graduates from",
		},
	}

	skeletons := BuildStateSkeletons(facts)
	require.Len(t, skeletons, 1)
	assert.Equal(t, types.FactTypeStateChange, skeletons[0].FactType)
	assert.Equal(t, []string{"Will"}, skeletons[0].AffectedFact.Subjects)
	assert.Equal(t, "graduates from", skeletons[0].AffectedFact.RelationType)
	assert.Empty(t, skeletons[0].CausedBy)
	assert.Empty(t, skeletons[0].Causes)
}

func TestCausalInferer(t *testing.T) {
	llm := &stubLLM{responses: []string{`{
		"state_facts": [{
			"fact_type": "state_change_event",
			"affected_fact": {"subjects": ["Will"], "objects": ["Imperial Department of Computing"], "relation_type": "works for"},
			"caused_by": [[{"subjects": ["Will"], "objects": ["university"], "relation_type": "graduates from", "triggered_by_state": true}]],
			"causes": []
		}]
	}`}}
	inferer := NewCausalInferer(llm, "gpt-5-mini", nil)

	skeletons := []types.StateFact{{
		FactType:     types.FactTypeStateChange,
		AffectedFact: types.FactRef{Subjects: []string{"Will"}, Objects: []string{"Imperial Department of Computing"}, RelationType: "works for"},
	}}

	got := inferer.Infer(context.Background(), "Graduating caused Will to work for Imperial.", skeletons)
	require.Len(t, got, 1)
	require.Len(t, got[0].CausedBy, 1)
	require.Len(t, got[0].CausedBy[0], 1)
	assert.True(t, got[0].CausedBy[0][0].TriggeredByState)
	assert.Equal(t, "graduates from", got[0].CausedBy[0][0].RelationType)
}

func TestCausalInfererFallsBackToSkeletons(t *testing.T) {
	llm := &stubLLM{err: errors.New("timeout")}
	inferer := NewCausalInferer(llm, "gpt-5-mini", nil)

	skeletons := []types.StateFact{{
		FactType:     types.FactTypeStateChange,
		AffectedFact: types.FactRef{Subjects: []string{"John"}, RelationType: "dies"},
	}}

	got := inferer.Infer(context.Background(), "John dies.", skeletons)
	assert.Equal(t, skeletons, got)
}

func TestCausalInfererEmptyInput(t *testing.T) {
	inferer := NewCausalInferer(&stubLLM{}, "gpt-5-mini", nil)
	assert.Empty(t, inferer.Infer(context.Background(), "text", nil))
}
