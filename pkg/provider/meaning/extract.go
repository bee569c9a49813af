package meaning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedReply indicates the backend answered but no JSON object could
// be extracted from the reply.
var ErrMalformedReply = errors.New("no JSON object in reply")

// ExtractMapping finds the first well-formed JSON object in reply and
// returns its scalar top-level fields as a word-to-meaning mapping. Models
// often wrap the object in prose or markdown fences; everything around the
// object is ignored. Keys are lowercased and trimmed; nested objects and
// arrays are skipped. An object without usable entries yields an empty,
// non-nil map. A reply containing no valid object yields an error wrapping
// [ErrMalformedReply].
func ExtractMapping(reply string) (map[string]string, error) {
	obj, ok := firstJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("meaning: %w: %.80q", ErrMalformedReply, reply)
	}

	mapping := make(map[string]string)
	gjson.Parse(obj).ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() || value.IsArray() {
			return true
		}
		word := strings.ToLower(strings.TrimSpace(key.String()))
		m := strings.TrimSpace(value.String())
		if word != "" && m != "" {
			mapping[word] = m
		}
		return true
	})
	return mapping, nil
}

// firstJSONObject scans s for the first balanced JSON object that parses,
// honoring string literals and escape sequences. Candidates that balance
// but do not parse are skipped and the scan resumes at the next brace.
func firstJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start != -1; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString:
				switch c {
				case '\\':
					escaped = true
				case '"':
					inString = false
				}
			case c == '"':
				inString = true
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if gjson.Valid(candidate) {
						return candidate, true
					}
					i = len(s) // abandon this candidate
				}
			}
		}
		rest := strings.IndexByte(s[start+1:], '{')
		if rest == -1 {
			return "", false
		}
		start = start + 1 + rest
	}
	return "", false
}
