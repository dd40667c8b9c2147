package extract

import (
	"strings"
	"unicode"
)

// Chunk is a contiguous run of sentences processed as one unit.
type Chunk struct {
	Index int
	Text  string
}

// SplitIntoSentences splits text on sentence-ending punctuation followed by
// whitespace. Fragments of three characters or fewer are dropped.
func SplitIntoSentences(text string) []string {
	var sentences []string
	var sb strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		sb.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			flushSentence(&sentences, &sb)
			// Skip the whitespace run between sentences
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}
	flushSentence(&sentences, &sb)

	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func flushSentence(sentences *[]string, sb *strings.Builder) {
	sentence := strings.TrimSpace(sb.String())
	sb.Reset()
	if len(sentence) > 3 {
		*sentences = append(*sentences, sentence)
	}
}

// SplitIntoChunks groups the text's sentences into chunks of chunkSize
// sentences each.
func SplitIntoChunks(text string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 3
	}

	sentences := SplitIntoSentences(text)

	var chunks []Chunk
	for i := 0; i < len(sentences); i += chunkSize {
		end := i + chunkSize
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, Chunk{
			Index: i / chunkSize,
			Text:  strings.Join(sentences[i:end], " "),
		})
	}
	return chunks
}
