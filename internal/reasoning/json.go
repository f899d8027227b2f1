package reasoning

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a completion contains no parseable object.
var ErrNoJSONObject = errors.New("no JSON object in completion")

// ParseJSONObject decodes a JSON object from text. Models sometimes wrap the
// object in prose or code fences, so when the whole text does not parse the
// span from the first '{' to the last '}' is tried.
func ParseJSONObject(text string, v any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ErrNoJSONObject
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return errors.Join(ErrNoJSONObject, err)
	}
	return nil
}
