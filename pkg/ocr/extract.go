package ocr

import (
	"regexp"
	"strings"
)

var (
	decimalRE = regexp.MustCompile(`[0-9]+[.,][0-9]+`)
	wholeRE   = regexp.MustCompile(`[0-9]+`)
)

// Extraction heuristic confidences. Decimal readings score highest because a
// separator surviving OCR implies the digit run came through intact; the
// fallback keeps the raw text available instead of erroring out.
const (
	confDecimal  = 0.95
	confWhole    = 0.90
	confFallback = 0.50
)

// Extraction is the extractor's best guess at the displayed weight.
type Extraction struct {
	Value           string
	LocalConfidence float64
}

// ExtractWeight turns noisy recognized text into the single most plausible
// numeric reading. Decimal patterns (digits, '.' or ',', digits) win over
// plain digit runs; within a pattern class the longest match wins, ties going
// to the first occurrence. Multi-line output from a seven-segment panel often
// carries stray short fragments (a lone "1" bled from a decimal point) next
// to the true reading, and length is a cheap proxy for the most complete run.
// When no digits survive at all the whole normalized text is returned at low
// confidence rather than an error. Pure function: no state, no I/O.
func ExtractWeight(text string) Extraction {
	norm := NormalizeText(text)
	if m := longestMatch(decimalRE, norm); m != "" {
		return Extraction{Value: strings.Replace(m, ",", ".", 1), LocalConfidence: confDecimal}
	}
	if m := longestMatch(wholeRE, norm); m != "" {
		return Extraction{Value: m, LocalConfidence: confWhole}
	}
	return Extraction{Value: norm, LocalConfidence: confFallback}
}

// longestMatch returns the longest substring matched by re, preferring the
// earliest occurrence on equal length. Matches come back in scan order, so
// strict greater-than comparison preserves the first-occurrence tie-break.
func longestMatch(re *regexp.Regexp, s string) string {
	best := ""
	for _, m := range re.FindAllString(s, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	return best
}

// MergeConfidence combines the engine's character-level confidence (0-100)
// with the extraction heuristic's own confidence (0-1) into the final score
// reported to callers. The product always lands in [0,1].
func MergeConfidence(engineConf, localConf float64) float64 {
	if engineConf < 0 {
		engineConf = 0
	}
	if engineConf > 100 {
		engineConf = 100
	}
	return engineConf / 100 * localConf
}
