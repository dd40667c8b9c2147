// Package extract turns raw natural-language text into structured temporal
// facts, modifications and state-change events via LLM calls.
package extract

import (
	"regexp"
	"strings"
)

var (
	citationRe      = regexp.MustCompile(`\[\d+\]`)
	diacriticsRe    = regexp.MustCompile(`[\x{0300}-\x{036F}]`)
	pronunciationRe = regexp.MustCompile(`[\x{02B0}-\x{02FF}]`)
	ipaRe           = regexp.MustCompile(`[ɑɒʊəɜɨɯɵɶɷɸɹɺɻɼɽɾɿʀʁʂʃʄʅʆʇʈʉʊʋʌʍʎʏʐʑʒʓʕʖʗʘʙʚʛʜʝʞʟʠʡʢʣʤʥʦʧʨʩʪʫʬʭʮʯɔ]`)
	scriptDigitsRe  = regexp.MustCompile(`[⁰¹²³⁴⁵⁶⁷⁸⁹₀₁₂₃₄₅₆₇₈₉]`)
	circledRe       = regexp.MustCompile(`[ⓘⓐⓑⓒⓓⓔⓕⓖⓗⓙⓚⓛⓜⓝⓞⓟⓠⓡⓢⓣⓤⓥⓦⓧⓨⓩ]`)
	controlRe       = regexp.MustCompile(`[\x{0000}-\x{0009}\x{000B}-\x{001F}\x{007F}-\x{009F}]`)
	strayBracketsRe = regexp.MustCompile(`\s+[\[\]{}]\s+`)
	leadBracketsRe  = regexp.MustCompile(`^\s*[\[\]{}]\s*`)
	trailBracketsRe = regexp.MustCompile(`\s*[\[\]{}]\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// CleanText strips citation markers, diacritics, IPA pronunciation guides and
// control characters from text, then normalises whitespace. Keeps the text
// readable for LLM extraction without malformed sentence fragments.
func CleanText(text string) string {
	text = citationRe.ReplaceAllString(text, "")
	text = diacriticsRe.ReplaceAllString(text, "")
	text = pronunciationRe.ReplaceAllString(text, "")
	text = ipaRe.ReplaceAllString(text, "")
	text = scriptDigitsRe.ReplaceAllString(text, "")
	text = circledRe.ReplaceAllString(text, "")
	text = controlRe.ReplaceAllString(text, "")

	text = strayBracketsRe.ReplaceAllString(text, " ")
	text = leadBracketsRe.ReplaceAllString(text, "")
	text = trailBracketsRe.ReplaceAllString(text, "")

	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
