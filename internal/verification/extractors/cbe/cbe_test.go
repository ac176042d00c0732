package cbe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tise-genene/verifyreceipt/internal/verification/extractors"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
	"github.com/tise-genene/verifyreceipt/pkg/platform/circuit"
	"github.com/tise-genene/verifyreceipt/pkg/platform/retry"
	"github.com/tise-genene/verifyreceipt/pkg/platform/sentinel"
)

func newExtractor(t *testing.T, handler http.HandlerFunc, text string) (*Extractor, *circuit.Breaker) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	breaker := circuit.New(BreakerName)
	fetcher := extractors.NewFetcher(breaker,
		extractors.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		extractors.WithRetryPolicy(retry.Policy{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	e := New(srv.URL+"/", fetcher, WithTextReader(func(b []byte) (string, error) {
		if string(b) != "%PDF-fixture" {
			return "", errors.New("unexpected body")
		}
		return text, nil
	}))
	return e, breaker
}

func pdfHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FT26015ABCDE", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-fixture"))
	}
}

func TestExtract_ParsesPDF(t *testing.T) {
	e, _ := newExtractor(t, pdfHandler(t), "  "+vatInvoiceText+"\n")

	raw, err := e.Extract(context.Background(), " FT26015ABCDE ")
	require.NoError(t, err)

	receipt, ok := raw.(models.CBEReceipt)
	require.True(t, ok)
	assert.Equal(t, "ABEBE KEBEDE", receipt.PayerName)
	assert.Contains(t, receipt.ReceiptURL, "/?id=FT26015ABCDE")
	assert.Equal(t, models.ProviderCBE, e.Provider())
}

func TestExtract_NonPDFIsNotFound(t *testing.T) {
	e, breaker := newExtractor(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>no receipt</html>"))
	}, "")

	_, err := e.Extract(context.Background(), "FT26015ABCDE")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, 0, breaker.Failures())
}

func TestExtract_404IsNotFound(t *testing.T) {
	e, breaker := newExtractor(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "")

	_, err := e.Extract(context.Background(), "FT26015ABCDE")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, 0, breaker.Failures())
}

func TestExtract_EmptyTextIsHardError(t *testing.T) {
	e, _ := newExtractor(t, pdfHandler(t), "   \n ")

	_, err := e.Extract(context.Background(), "FT26015ABCDE")
	assert.ErrorIs(t, err, sentinel.ErrEmptyContent)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)
}

func TestExtract_RejectsNonAlphanumericReference(t *testing.T) {
	called := false
	e, _ := newExtractor(t, func(http.ResponseWriter, *http.Request) { called = true }, "")

	_, err := e.Extract(context.Background(), "FT1&id=2")
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	assert.False(t, called)
}

func TestReadPDFText_Malformed(t *testing.T) {
	_, err := readPDFText([]byte("not a pdf"))
	assert.Error(t, err)
}

// buildPDF writes a minimal PDF with one Helvetica text page per entry.
// Lines within a page are separated by "\n".
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		content := "BT /F1 12 Tf 72 720 Td (" + strings.ReplaceAll(text, "\n", ") Tj T* (") + ") Tj ET"
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

var threePageReceipt = buildPDF(
	"Commercial Bank of Ethiopia\nTransferred Amount 1,250.00 ETB",
	"Payer ABEBE KEBEDE Account 1****5678",
	"Terms and conditions 9,999.00 ETB",
)

func TestReadPDFText_FirstTwoPagesOnly(t *testing.T) {
	text, err := readPDFText(threePageReceipt)
	require.NoError(t, err)

	assert.Contains(t, text, "Transferred Amount 1,250.00 ETB")
	assert.Contains(t, text, "Payer ABEBE KEBEDE Account")
	assert.NotContains(t, text, "Terms and conditions")
	assert.NotContains(t, text, "9,999.00")
}

func TestExtract_ReadsRealPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(threePageReceipt)
	}))
	t.Cleanup(srv.Close)

	fetcher := extractors.NewFetcher(circuit.New(BreakerName),
		extractors.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		extractors.WithRetryPolicy(retry.Policy{Attempts: 1}),
	)
	raw, err := New(srv.URL+"/", fetcher).Extract(context.Background(), "FT26015ABCDE")
	require.NoError(t, err)

	receipt, ok := raw.(models.CBEReceipt)
	require.True(t, ok)
	requireAmount(t, "1250", receipt.Amount)
	assert.Equal(t, "ABEBE KEBEDE", receipt.PayerName)
	assert.NotContains(t, receipt.RawText, "9,999.00")
}
