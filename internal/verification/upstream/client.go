package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/pkg/platform/httputil"
)

const (
	apiKeyHeader     = "x-api-key"
	imageEndpoint    = "/verify-image"
	maxResponseBytes = 4 << 20
)

var endpoints = map[models.Provider]string{
	models.ProviderTelebirr:  "/verify-telebirr",
	models.ProviderCBE:       "/verify-cbe",
	models.ProviderDashen:    "/verify-dashen",
	models.ProviderAbyssinia: "/verify-abyssinia",
	models.ProviderCBEBirr:   "/verify-cbebirr",
}

// Client calls the remote verification API. Calls are single-shot: no retry.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeouts sets separate connect and total timeouts.
func WithTimeouts(connect, total time.Duration) Option {
	return func(c *Client) {
		c.httpClient = httputil.NewClient(connect, total)
	}
}

// WithTracer overrides the tracer used for outbound spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates an upstream client for baseURL authenticated by apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httputil.NewClient(20*time.Second, 60*time.Second),
		tracer:     otel.Tracer("verifyreceipt/upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyReference posts a reference verification for the request's provider.
func (c *Client) VerifyReference(ctx context.Context, req models.ReferenceRequest) (models.UpstreamRaw, error) {
	path, ok := endpoints[req.Provider]
	if !ok {
		return models.UpstreamRaw{}, fmt.Errorf("unsupported provider %q", req.Provider)
	}

	payload := map[string]string{"reference": req.Reference}
	if req.Suffix != "" {
		payload["suffix"] = req.Suffix
		payload["accountSuffix"] = req.Suffix
	}
	if req.Phone != "" {
		payload["phone"] = req.Phone
		payload["phoneNumber"] = req.Phone
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.UpstreamRaw{}, fmt.Errorf("encode upstream payload: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "upstream.verify_reference", trace.WithAttributes(
		attribute.String("provider", string(req.Provider)),
	))
	defer span.End()

	out, err := c.post(ctx, path, "application/json", bytes.NewReader(body))
	recordSpan(span, err)
	return out, err
}

// VerifyImage posts a receipt image as multipart form data.
func (c *Client) VerifyImage(ctx context.Context, req models.ImageRequest) (models.UpstreamRaw, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return models.UpstreamRaw{}, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return models.UpstreamRaw{}, fmt.Errorf("write image part: %w", err)
	}
	if req.Suffix != "" {
		for _, field := range []string{"suffix", "accountSuffix"} {
			if err := w.WriteField(field, req.Suffix); err != nil {
				return models.UpstreamRaw{}, fmt.Errorf("write %s field: %w", field, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return models.UpstreamRaw{}, fmt.Errorf("close multipart body: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "upstream.verify_image", trace.WithAttributes(
		attribute.String("provider", string(req.Provider)),
		attribute.Int("image.bytes", len(req.Image)),
	))
	defer span.End()

	out, err := c.post(ctx, imageEndpoint, w.FormDataContentType(), &buf)
	recordSpan(span, err)
	return out, err
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (models.UpstreamRaw, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return models.UpstreamRaw{}, fmt.Errorf("build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.UpstreamRaw{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.UpstreamRaw{}, classifyTransportError(err)
	}

	decoded := decodeBody(raw)
	if resp.StatusCode >= http.StatusBadRequest {
		return models.UpstreamRaw{}, &Error{StatusCode: resp.StatusCode, Body: decoded}
	}
	return models.UpstreamRaw{Body: decoded}, nil
}

// decodeBody returns the JSON object in raw, or {"rawText": raw} otherwise.
func decodeBody(raw []byte) map[string]any {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"rawText": string(raw)}
}

func recordSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
