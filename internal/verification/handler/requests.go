package handler

import (
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

// VerifyReferenceRequest is the HTTP request body for POST /verify/reference.
type VerifyReferenceRequest struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
	Suffix    string `json:"suffix,omitempty"`
	Phone     string `json:"phone,omitempty"`

	parsed models.ReferenceRequest
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyReferenceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Reference) > 128 || len(r.Suffix) > 64 || len(r.Phone) > 32 {
		return dErrors.New(dErrors.CodeValidation, "request field exceeds maximum length")
	}

	parsed, err := models.NewReferenceRequest(r.Provider, r.Reference, r.Suffix, r.Phone)
	if err != nil {
		return err
	}
	r.parsed = parsed
	return nil
}

// Parsed returns the validated domain request.
func (r *VerifyReferenceRequest) Parsed() models.ReferenceRequest {
	return r.parsed
}
