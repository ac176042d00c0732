package orchestrator

import (
	"encoding/json"
	"strings"
)

// Signatures of headless-browser failures leaking from the upstream's scrapers.
var automationKeywords = []string{
	"puppeteer",
	"playwright",
	"selenium",
	"headless",
	"chromium",
	"could not find chrome",
	"browser has disconnected",
	"failed to launch the browser",
}

var notFoundPhrases = []string{
	"not found",
	"not_found",
	"notfound",
	"does not exist",
	"no record",
}

var messageFields = []string{"message", "detail", "error", "msg", "status", "reason"}

// IsAutomationFailure reports whether body mentions browser automation
// infrastructure anywhere in its serialised form.
func IsAutomationFailure(body map[string]any) bool {
	if len(body) == 0 {
		return false
	}
	b, err := json.Marshal(body)
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(b))
	for _, kw := range automationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether a message-like field of body, at the top level
// or under "data", contains a not-found phrase.
func IsNotFound(body map[string]any) bool {
	if containsNotFound(body) {
		return true
	}
	if data, ok := body["data"].(map[string]any); ok {
		return containsNotFound(data)
	}
	return false
}

func containsNotFound(m map[string]any) bool {
	for _, field := range messageFields {
		for _, text := range fieldText(m[field]) {
			lower := strings.ToLower(text)
			for _, phrase := range notFoundPhrases {
				if strings.Contains(lower, phrase) {
					return true
				}
			}
		}
	}
	return false
}

// fieldText returns v when it is a string, or the message strings of an
// error object such as {"error": {"message": "..."}}.
func fieldText(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case map[string]any:
		var out []string
		for _, k := range []string{"message", "detail", "msg"} {
			if s, ok := val[k].(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
