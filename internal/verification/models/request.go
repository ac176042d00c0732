package models

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

const minReferenceLength = 3

// ReferenceRequest asks for verification of a transaction reference.
// Construct with NewReferenceRequest; values are immutable afterwards.
type ReferenceRequest struct {
	Provider  Provider
	Reference string
	Suffix    string
	Phone     string
}

// NewReferenceRequest validates and normalises the caller's input.
func NewReferenceRequest(provider, reference, suffix, phone string) (ReferenceRequest, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return ReferenceRequest{}, err
	}
	req := ReferenceRequest{
		Provider:  p,
		Reference: strings.TrimSpace(reference),
		Suffix:    strings.TrimSpace(suffix),
		Phone:     strings.TrimSpace(phone),
	}
	if len(req.Reference) < minReferenceLength {
		return ReferenceRequest{}, dErrors.New(dErrors.CodeValidation, "reference must be at least 3 characters")
	}
	if p.RequiresSuffix() && req.Suffix == "" {
		return ReferenceRequest{}, dErrors.New(dErrors.CodeValidation, "suffix is required for this provider")
	}
	if p.RequiresPhone() && req.Phone == "" {
		return ReferenceRequest{}, dErrors.New(dErrors.CodeValidation, "phone is required for cbebirr")
	}
	return req, nil
}

// CacheKey is a deterministic, collision-free key over every distinguishing field.
// Segments are query-escaped so a ':' inside a field cannot alias another request.
func (r ReferenceRequest) CacheKey() string {
	return joinKey("ref", string(r.Provider), r.Reference, r.Suffix, r.Phone)
}

// ImageRequest asks for verification of an uploaded receipt image.
type ImageRequest struct {
	Image    []byte
	Filename string
	Provider Provider // optional
	Suffix   string
}

// NewImageRequest validates an image upload. provider may be empty.
func NewImageRequest(image []byte, filename, provider, suffix string) (ImageRequest, error) {
	if len(image) == 0 {
		return ImageRequest{}, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	req := ImageRequest{
		Image:    image,
		Filename: strings.TrimSpace(filename),
		Suffix:   strings.TrimSpace(suffix),
	}
	if req.Filename == "" {
		req.Filename = "receipt.jpg"
	}
	if strings.TrimSpace(provider) != "" {
		p, err := ParseProvider(provider)
		if err != nil || !p.SupportsImage() {
			return ImageRequest{}, dErrors.New(dErrors.CodeValidation, "receipt upload supports provider telebirr or cbe")
		}
		req.Provider = p
	}
	if req.Provider == ProviderCBE && req.Suffix == "" {
		return ImageRequest{}, dErrors.New(dErrors.CodeValidation, "suffix is required for CBE receipt verification")
	}
	return req, nil
}

// CacheKey keys on a digest of the image plus the optional provider and suffix.
func (r ImageRequest) CacheKey() string {
	sum := sha256.Sum256(r.Image)
	return joinKey("img", hex.EncodeToString(sum[:])[:16], string(r.Provider), r.Suffix)
}

func joinKey(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, s := range segments {
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(s))
	}
	return b.String()
}
