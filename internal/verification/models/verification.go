package models

import (
	"github.com/shopspring/decimal"
)

// Status is the normalised verification outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// Source records which path produced a verification.
type Source string

const (
	SourceUpstream Source = "upstream"
	SourceLocal    Source = "local"
)

// Confidence grades how complete a successful verification is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Verification is the canonical record returned to callers.
// Amount, Payer and Date are optional; Raw is the source payload kept for audit.
type Verification struct {
	Status     Status
	Provider   Provider
	Reference  string
	Amount     *decimal.Decimal
	Payer      string
	Date       string
	Source     Source
	Confidence Confidence
	Raw        map[string]any
}

// IsSuccess reports whether the verification succeeded.
func (v *Verification) IsSuccess() bool {
	return v != nil && v.Status == StatusSuccess
}
