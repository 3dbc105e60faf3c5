package tools

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EncodeResult renders a tool result for the model-facing transcript. When the
// encoding exceeds maxRunes runes (maxRunes <= 0 disables the check) it is
// replaced by a JSON envelope carrying its leading runes, so the model still
// receives valid JSON and can ask again with a narrower filter. The envelope
// itself stays within maxRunes whenever maxRunes leaves room for its keys.
func EncodeResult(result map[string]any, maxRunes int) string {
	b, err := json.Marshal(result)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"error": fmt.Sprintf("unencodable tool result: %v", err)})
	}
	s := string(b)
	if maxRunes <= 0 {
		return s
	}
	total := utf8.RuneCountInString(s)
	if total <= maxRunes {
		return s
	}
	runes := []rune(s)
	keep := maxRunes - envelopeReserve
	if keep < 1 {
		keep = 1
	}
	// Escapes inside "partial" cost at least two runes each.
	for {
		out, _ := json.Marshal(map[string]any{
			"truncated":   true,
			"total_runes": total,
			"partial":     string(runes[:keep]),
		})
		over := utf8.RuneCount(out) - maxRunes
		if over <= 0 || keep == 0 {
			return string(out)
		}
		keep -= (over + 1) / 2
		if keep < 0 {
			keep = 0
		}
	}
}

// envelopeReserve is runes reserved for the truncation envelope's own keys.
const envelopeReserve = 60
