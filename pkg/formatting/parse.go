package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be decoded as JSON,
// either directly, from a markdown code fence, or from an embedded object.
var ErrParseFailed = errors.New("failed to parse response")

var (
	jsonBlockRegex  = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")
	jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// Decode unmarshals raw into T. Model output is stored either as a JSON
// value or as a JSON string holding the model's text; in the latter case
// the text is parsed with Parse.
func Decode[T any](raw []byte) (T, error) {
	var result T
	if err := json.Unmarshal(raw, &result); err == nil {
		return result, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Parse[T](text)
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, raw)
}

// Parse attempts to unmarshal content as JSON into T.
// If direct parsing fails, it extracts JSON from a markdown code fence and
// then from the outermost brace pair, retrying each.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
			return result, nil
		}
	}

	if obj := jsonObjectRegex.FindString(content); obj != "" {
		if err := json.Unmarshal([]byte(obj), &result); err == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, content)
}
