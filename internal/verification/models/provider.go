package models

import (
	"strings"

	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

// Provider is one of the supported payment networks.
type Provider string

const (
	ProviderTelebirr  Provider = "telebirr"
	ProviderCBE       Provider = "cbe"
	ProviderDashen    Provider = "dashen"
	ProviderAbyssinia Provider = "abyssinia"
	ProviderCBEBirr   Provider = "cbebirr"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{
	ProviderTelebirr,
	ProviderCBE,
	ProviderDashen,
	ProviderAbyssinia,
	ProviderCBEBirr,
}

// ParseProvider validates a provider name (case-insensitive).
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported provider")
	}
	return p, nil
}

// IsValid checks if the provider is one of the supported enum values.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderTelebirr, ProviderCBE, ProviderDashen, ProviderAbyssinia, ProviderCBEBirr:
		return true
	}
	return false
}

// RequiresSuffix reports whether reference verification needs an account suffix.
func (p Provider) RequiresSuffix() bool {
	return p == ProviderCBE || p == ProviderAbyssinia
}

// RequiresPhone reports whether reference verification needs a phone number.
func (p Provider) RequiresPhone() bool {
	return p == ProviderCBEBirr
}

// SupportsImage reports whether the upstream image endpoint accepts this provider.
func (p Provider) SupportsImage() bool {
	return p == ProviderTelebirr || p == ProviderCBE
}

// HasLocalExtractor reports whether a bank-side receipt fallback exists.
func (p Provider) HasLocalExtractor() bool {
	return p == ProviderTelebirr || p == ProviderCBE
}

func (p Provider) String() string {
	return string(p)
}
