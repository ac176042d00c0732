// Package telebirr fetches and parses Telebirr transaction receipts, which the
// operator serves as JSON or as an HTML page.
package telebirr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tise-genene/verifyreceipt/internal/verification/extractors"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/pkg/platform/sentinel"
)

// BreakerName identifies the Telebirr receipt dependency in logs and metrics.
const BreakerName = "telebirr_receipt"

const accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Extractor verifies Telebirr references against the public receipt page.
type Extractor struct {
	baseURL string
	fetcher *extractors.Fetcher
}

// New creates a Telebirr extractor rooted at baseURL.
func New(baseURL string, fetcher *extractors.Fetcher) *Extractor {
	return &Extractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
	}
}

// Provider returns models.ProviderTelebirr.
func (e *Extractor) Provider() models.Provider {
	return models.ProviderTelebirr
}

// Extract fetches and parses the receipt for reference. A JSON payload, served
// directly or embedded in the page, is preferred over label scraping.
func (e *Extractor) Extract(ctx context.Context, reference string) (models.Raw, error) {
	ref, err := extractors.ValidateReference(reference)
	if err != nil {
		return nil, err
	}
	url := e.baseURL + "/" + ref

	resp, err := e.fetcher.Get(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	ctype := strings.ToLower(resp.ContentType)

	var (
		payload map[string]any
		text    string
	)
	if strings.Contains(ctype, "json") {
		dec := json.NewDecoder(bytes.NewReader(resp.Body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode telebirr receipt json: %w", err)
		}
	} else {
		text = VisibleText(resp.Body)
		if text == "" {
			return nil, fmt.Errorf("telebirr receipt: %w", sentinel.ErrEmptyContent)
		}
		payload = ExtractJSONPayload(string(resp.Body))
		if payload == nil {
			payload = ExtractJSONPayload(text)
		}
	}

	if receipt, ok := ParseJSONPayload(payload, ref, url); ok {
		return receipt, nil
	}

	if !strings.Contains(ctype, "html") && !strings.Contains(ctype, "text") {
		return nil, fmt.Errorf("telebirr receipt %w", sentinel.ErrNotFound)
	}
	if text == "" {
		if text = VisibleText(resp.Body); text == "" {
			return nil, fmt.Errorf("telebirr receipt: %w", sentinel.ErrEmptyContent)
		}
	}
	return ParseHTMLText(text, ref, url), nil
}
