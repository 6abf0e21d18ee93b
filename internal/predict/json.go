package predict

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown fences and surrounding prose from a provider
// answer, leaving the outermost JSON object or array.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	open, closing := "{", "}"
	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closing = "[", "]"
	}
	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// keyedOutput is an Output whose answer must carry specific keys. Decoding
// alone cannot tell a missing key from its zero value.
type keyedOutput interface {
	Output
	RequiredKeys() []string
}

// checkRequiredKeys rejects payloads that omit a required key or set it to
// null.
func checkRequiredKeys(payload string, keys []string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return eris.Wrap(err, "predict: response is not a JSON object")
	}
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || string(raw) == "null" {
			return eris.Errorf("predict: response missing required key %q", k)
		}
	}
	return nil
}

// Decode extracts the JSON payload from text, decodes it strictly into out
// and validates it.
func Decode(text string, out Output) error {
	payload := cleanJSON(text)
	if payload == "" {
		return eris.New("predict: response lacked a JSON payload")
	}

	if ko, ok := out.(keyedOutput); ok {
		if err := checkRequiredKeys(payload, ko.RequiredKeys()); err != nil {
			return err
		}
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return eris.Wrap(err, "predict: decode response")
	}
	if dec.More() {
		return eris.New("predict: trailing data after JSON payload")
	}

	if err := out.Validate(); err != nil {
		return eris.Wrap(err, "predict: validate response")
	}
	return nil
}
