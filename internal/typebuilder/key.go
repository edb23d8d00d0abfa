package typebuilder

import (
	"fmt"
	"strings"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
)

// GenerateKey derives a record type api key from a block type api key:
// sanitized, starting with a letter, pluralized and at most
// constants.MaxAPIKeyLength long. When taken reports a collision, letter
// suffixes (_a, _b, ...) are tried up to constants.MaxKeyAttempts times.
func GenerateKey(source string, taken func(string) bool) (string, error) {
	key := pluralize(sanitizeKey(source))
	key = truncate(key, constants.MaxAPIKeyLength)
	if !taken(key) {
		return key, nil
	}
	for i := 0; i < constants.MaxKeyAttempts; i++ {
		suffix := "_" + letters(i)
		candidate := truncate(key, constants.MaxAPIKeyLength-len(suffix)) + suffix
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", constants.ErrKeyExhausted, key, constants.MaxKeyAttempts)
}

func sanitizeKey(s string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWord {
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		sb.WriteRune(r)
		lastUnderscore = false
	}
	key := strings.Trim(sb.String(), "_")
	if key == "" {
		return "model"
	}
	if key[0] < 'a' || key[0] > 'z' {
		key = "m_" + key
	}
	return key
}

func pluralize(s string) string {
	switch {
	case strings.HasSuffix(s, "y") && len(s) > 1 && !isVowel(s[len(s)-2]):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"),
		strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "_")
}

// letters returns the i-th letter suffix: a ... z, aa, ab, ...
func letters(i int) string {
	var out []byte
	for i++; i > 0; i = (i - 1) / 26 {
		out = append([]byte{byte('a' + (i-1)%26)}, out...)
	}
	return string(out)
}
