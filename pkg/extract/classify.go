package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/soundprediction/chronotope/pkg/nlp"
	"github.com/soundprediction/chronotope/pkg/types"
)

// Keywords that mark a sentence as a correction to existing facts.
var modificationIndicators = []string{
	"actually", "in fact", "oops", "my mistake", "update", "correction", "modification",
}

const classifierSystemPrompt = `You are a text analysis agent that identifies modification sentences in text.
A modification sentence is one that describes changes to existing facts, corrections, or updates. Examples include:
- "To all intents and purposes, John runs the company, not Mike." (corrects subject)
- "Oops, Sally booked the race tickets on the 20th October instead of the 15th" (corrects time)
- "The meeting was on Tuesday, not Monday" (corrects time)
- "My mistake, the location of John's meeting was London" (corrects location)
- "Update: the relationship ended in 2021, not 2020" (corrects time and subject)

A regular temporal fact sentence is one that states new facts without correcting existing ones:
- "John really liked cats from 2020 onwards" (Assume "really" is for emphasis)
- "Sally booked race tickets on October 15th"
- "The meeting was on Monday at 2pm"

Your task is to classify each sentence in the input text as either:
1. REGULAR - a sentence that states new temporal facts
2. MODIFICATION - a sentence that corrects or updates existing facts

Return your response in this exact format:
REGULAR:
[list all regular sentences, one per line]

MODIFICATION:
[list all modification sentences, one per line]

If there are no modification sentences, just return:
REGULAR:
[all sentences]`

// Classifier separates modification sentences from regular fact sentences.
// The keyword pass is always applied; an optional LLM pass refines it.
type Classifier struct {
	llm    nlp.Client
	model  string
	useLLM bool
	logger *slog.Logger
}

// NewClassifier creates a classifier. The LLM refinement pass runs only when
// useLLM is set and a client is provided.
func NewClassifier(llm nlp.Client, model string, useLLM bool, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{llm: llm, model: model, useLLM: useLLM, logger: logger}
}

// Classify splits text into regular fact text and modification text. On LLM
// failure the keyword-based split is returned.
func (c *Classifier) Classify(ctx context.Context, text string) (regular, modification string) {
	keywordRegular, keywordModification := classifyByKeywords(text)

	if !c.useLLM || c.llm == nil {
		return keywordRegular, keywordModification
	}

	resp, err := c.llm.Chat(ctx, c.model, []types.Message{
		nlp.NewSystemMessage(classifierSystemPrompt),
		nlp.NewUserMessage("Text to analyze:\n" + text),
	})
	if err != nil || resp == nil || resp.Content == "" {
		c.logger.Warn("modification classifier LLM call failed, using keyword split", "error", err)
		return keywordRegular, keywordModification
	}

	llmRegular, llmModification := parseClassifierResponse(resp.Content)
	if llmRegular == "" && llmModification == "" {
		return keywordRegular, keywordModification
	}
	if llmRegular == "" {
		llmRegular = text
	}
	return llmRegular, llmModification
}

func classifyByKeywords(text string) (regular, modification string) {
	var regularSentences, modificationSentences []string

	for _, raw := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		isModification := false
		for _, indicator := range modificationIndicators {
			if strings.Contains(lower, indicator) {
				isModification = true
				break
			}
		}
		if isModification {
			modificationSentences = append(modificationSentences, sentence)
		} else {
			regularSentences = append(regularSentences, sentence)
		}
	}

	if len(regularSentences) == 0 {
		regular = text
	} else {
		regular = strings.Join(regularSentences, ". ")
	}
	modification = strings.Join(modificationSentences, ". ")
	return regular, modification
}

func parseClassifierResponse(content string) (regular, modification string) {
	var regularLines, modificationLines []string

	section := ""
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "REGULAR:":
			section = "regular"
		case line == "MODIFICATION:":
			section = "modification"
		case line != "" && section == "regular":
			regularLines = append(regularLines, line)
		case line != "" && section == "modification":
			modificationLines = append(modificationLines, line)
		}
	}

	return strings.Join(regularLines, "\n"), strings.Join(modificationLines, "\n")
}
