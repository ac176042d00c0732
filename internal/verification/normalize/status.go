package normalize

import (
	"strings"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

var statusKeys = []string{"status", "result", "state"}

var statusVocabulary = map[string]models.Status{
	"success":    models.StatusSuccess,
	"successful": models.StatusSuccess,
	"verified":   models.StatusSuccess,
	"paid":       models.StatusSuccess,
	"ok":         models.StatusSuccess,
	"failed":     models.StatusFailed,
	"invalid":    models.StatusFailed,
	"not_found":  models.StatusFailed,
	"not found":  models.StatusFailed,
	"unverified": models.StatusFailed,
	"error":      models.StatusFailed,
	"pending":    models.StatusPending,
	"processing": models.StatusPending,
	"unknown":    models.StatusPending,
}

var booleanKeys = []string{"success", "verified", "isVerified", "is_verified"}

// keyword classes are checked in this order; the first class with a hit wins
var messageKeywords = []struct {
	status   models.Status
	keywords []string
}{
	{models.StatusPending, []string{"pending", "processing", "try again"}},
	{models.StatusFailed, []string{"invalid", "not found", "failed"}},
	{models.StatusSuccess, []string{"success", "verified"}},
}

// Status infers a verification status from the top level of a raw body.
// Without positive evidence it returns PENDING, never SUCCESS or FAILED.
func Status(body map[string]any) models.Status {
	for _, key := range statusKeys {
		val, ok := body[key].(string)
		if !ok {
			continue
		}
		if status, found := statusVocabulary[strings.ToLower(strings.TrimSpace(val))]; found {
			return status
		}
	}

	for _, key := range booleanKeys {
		if val, ok := body[key].(bool); ok {
			if val {
				return models.StatusSuccess
			}
			return models.StatusFailed
		}
	}

	if msg := messageText(body); msg != "" {
		lower := strings.ToLower(msg)
		for _, class := range messageKeywords {
			for _, kw := range class.keywords {
				if strings.Contains(lower, kw) {
					return class.status
				}
			}
		}
	}

	return models.StatusPending
}

// messageText returns the first non-empty message or detail string.
func messageText(body map[string]any) string {
	for _, key := range []string{"message", "detail"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
