package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

var (
	amountKeys    = []string{"amount", "total", "totalAmount"}
	payerKeys     = []string{"payer", "payerName", "from", "sender"}
	dateKeys      = []string{"date", "time", "timestamp", "paymentDate", "transactionDate"}
	referenceKeys = []string{"reference", "ref", "transactionId", "txId"}
)

var numericRun = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

// Fields are the optional values pulled from a raw body.
type Fields struct {
	Amount    *decimal.Decimal
	Payer     string
	Date      string
	Reference string
}

// Present counts how many of amount, payer and date were recovered.
func (f Fields) Present() int {
	n := 0
	if f.Amount != nil {
		n++
	}
	if f.Payer != "" {
		n++
	}
	if f.Date != "" {
		n++
	}
	return n
}

// ExtractFields reads from the nested "data" object when present, else the top level.
func ExtractFields(body map[string]any) Fields {
	src := body
	if data, ok := body["data"].(map[string]any); ok {
		src = data
	}
	return Fields{
		Amount:    ParseAmount(first(src, amountKeys)),
		Payer:     asString(first(src, payerKeys)),
		Date:      asString(first(src, dateKeys)),
		Reference: asString(first(src, referenceKeys)),
	}
}

// ParseAmount accepts a JSON number directly. A string is parsed whole first
// (thousands separators allowed), then by its first numeric run.
func ParseAmount(v any) *decimal.Decimal {
	var d decimal.Decimal
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case float32:
		d = decimal.NewFromFloat32(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case json.Number:
		parsed, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil
		}
		d = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		if s == "" {
			return nil
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return FirstAmount(val)
		}
		d = parsed
	default:
		return nil
	}
	return &d
}

// FirstAmount returns the first numeric run in s that is not a percentage.
func FirstAmount(s string) *decimal.Decimal {
	for _, loc := range numericRun.FindAllStringIndex(s, -1) {
		if strings.HasPrefix(strings.TrimLeft(s[loc[1]:], " "), "%") {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(s[loc[0]:loc[1]], ",", ""))
		if err != nil {
			continue
		}
		return &d
	}
	return nil
}

// Confidence grades a result: only SUCCESS can be better than low.
func Confidence(status models.Status, f Fields) models.Confidence {
	if status != models.StatusSuccess {
		return models.ConfidenceLow
	}
	switch f.Present() {
	case 3:
		return models.ConfidenceHigh
	case 0:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}

// first returns the first present, non-empty value among keys.
func first(m map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, float32, int, int64, json.Number, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
