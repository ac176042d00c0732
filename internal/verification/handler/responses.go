package handler

import (
	"encoding/json"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

// VerificationResponse is the HTTP response for both verification endpoints.
// Absent optional fields are rendered as null.
type VerificationResponse struct {
	Status     string         `json:"status"`
	Provider   *string        `json:"provider"`
	Reference  *string        `json:"reference"`
	Amount     *json.Number   `json:"amount"`
	Payer      *string        `json:"payer"`
	Date       *string        `json:"date"`
	Source     string         `json:"source"`
	Confidence string         `json:"confidence"`
	Raw        map[string]any `json:"raw"`
}

// FromResult converts a domain Verification to an HTTP response.
func FromResult(v *models.Verification) *VerificationResponse {
	resp := &VerificationResponse{
		Status:     string(v.Status),
		Provider:   optional(string(v.Provider)),
		Reference:  optional(v.Reference),
		Payer:      optional(v.Payer),
		Date:       optional(v.Date),
		Source:     string(v.Source),
		Confidence: string(v.Confidence),
		Raw:        v.Raw,
	}
	if v.Amount != nil {
		n := json.Number(v.Amount.String())
		resp.Amount = &n
	}
	if resp.Raw == nil {
		resp.Raw = map[string]any{}
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
