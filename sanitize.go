package parley

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// sanitizeZeroWidth strips Unicode zero-width and invisible characters that
// would otherwise survive normalization and end up as underscores.
var sanitizeZeroWidth = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // zero-width no-break space (BOM)
	"\u2060", "", // word joiner
	"\u00ad", "", // soft hyphen
)

// SanitizeToolName maps an arbitrary tool name onto the wire-safe alphabet
// ^[A-Za-z0-9_-]{0,64}$. The input is NFKC-normalized (fullwidth Latin,
// ligatures, compatibility forms collapse to ASCII where possible), cut to
// 64 runes, and every remaining rune outside the alphabet becomes '_'.
// Total and idempotent: sanitizing a sanitized name returns it unchanged.
func SanitizeToolName(name string) string {
	cleaned := sanitizeZeroWidth.Replace(name)
	cleaned = norm.NFKC.String(cleaned)

	runes := []rune(cleaned)
	if len(runes) > 64 {
		runes = runes[:64]
	}

	out := make([]rune, len(runes))
	for i, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out[i] = r
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
