package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrMalformedOutput marks model output that did not decode into the
// expected structure. Never retried: malformed output does not self-correct.
type ErrMalformedOutput struct {
	Reason string
}

func (e *ErrMalformedOutput) Error() string {
	return "malformed model output: " + e.Reason
}

// StripFences removes a Markdown code-fence wrapper from model output, if
// present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decode strips fences and unmarshals into v, mapping any JSON error to
// ErrMalformedOutput.
func decode(raw string, v interface{}) error {
	cleaned := StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &ErrMalformedOutput{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}
