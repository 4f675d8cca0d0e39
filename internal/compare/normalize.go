package compare

import "strings"

// Normalize maps a raw field value to its canonical comparable form: leading
// and trailing whitespace trimmed, then case-folded to lowercase. The fold is
// plain codepoint-level lowering; no locale-sensitive collation is applied.
// Deterministic and total; a missing value normalizes to the empty string.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
