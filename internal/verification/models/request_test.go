package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
)

func TestNewReferenceRequest(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		reference string
		suffix    string
		phone     string
		wantErr   bool
	}{
		{name: "telebirr reference", provider: "telebirr", reference: "CE12ABC34D"},
		{name: "provider is case-insensitive", provider: "TeleBirr", reference: "CE12ABC34D"},
		{name: "cbe with suffix", provider: "cbe", reference: "FT25000ABCDE", suffix: "12345678"},
		{name: "cbe without suffix", provider: "cbe", reference: "FT25000ABCDE", wantErr: true},
		{name: "abyssinia without suffix", provider: "abyssinia", reference: "ABC123", wantErr: true},
		{name: "cbebirr with phone", provider: "cbebirr", reference: "ABC123", phone: "0911000000"},
		{name: "cbebirr without phone", provider: "cbebirr", reference: "ABC123", wantErr: true},
		{name: "dashen needs neither", provider: "dashen", reference: "ABC123"},
		{name: "reference too short after trim", provider: "telebirr", reference: "  ab  ", wantErr: true},
		{name: "unknown provider", provider: "paypal", reference: "ABC123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewReferenceRequest(tt.provider, tt.reference, tt.suffix, tt.phone)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, req.Provider.IsValid())
		})
	}
}

func TestReferenceRequest_TrimsFields(t *testing.T) {
	req, err := NewReferenceRequest(" cbe ", "  FT25000ABCDE ", " 1234 ", "")
	require.NoError(t, err)
	assert.Equal(t, ProviderCBE, req.Provider)
	assert.Equal(t, "FT25000ABCDE", req.Reference)
	assert.Equal(t, "1234", req.Suffix)
}

func TestReferenceRequest_CacheKey(t *testing.T) {
	a, err := NewReferenceRequest("cbe", "FT1", "x:y", "")
	require.NoError(t, err)
	b, err := NewReferenceRequest("cbe", "FT1:x", "y", "")
	require.NoError(t, err)
	c, err := NewReferenceRequest("cbe", "FT1", "x:y", "")
	require.NoError(t, err)

	assert.Equal(t, a.CacheKey(), c.CacheKey(), "identical requests share a key")
	assert.NotEqual(t, a.CacheKey(), b.CacheKey(), "separator characters cannot alias fields")
	assert.Equal(t, "ref:cbe:FT1:x%3Ay:", a.CacheKey())
}

func TestNewImageRequest(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff}

	t.Run("provider optional", func(t *testing.T) {
		req, err := NewImageRequest(img, "", "", "")
		require.NoError(t, err)
		assert.Equal(t, Provider(""), req.Provider)
		assert.Equal(t, "receipt.jpg", req.Filename)
	})

	t.Run("cbe requires suffix", func(t *testing.T) {
		_, err := NewImageRequest(img, "r.png", "cbe", "")
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("dashen not supported for images", func(t *testing.T) {
		_, err := NewImageRequest(img, "r.png", "dashen", "")
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("empty image rejected", func(t *testing.T) {
		_, err := NewImageRequest(nil, "r.png", "telebirr", "")
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("key depends on bytes and suffix", func(t *testing.T) {
		a, _ := NewImageRequest(img, "a.jpg", "cbe", "1234")
		b, _ := NewImageRequest(img, "b.jpg", "cbe", "1234")
		c, _ := NewImageRequest(img, "a.jpg", "cbe", "9999")
		d, _ := NewImageRequest([]byte{1, 2, 3}, "a.jpg", "cbe", "1234")

		assert.Equal(t, a.CacheKey(), b.CacheKey(), "filename does not affect the key")
		assert.NotEqual(t, a.CacheKey(), c.CacheKey())
		assert.NotEqual(t, a.CacheKey(), d.CacheKey())
		assert.Contains(t, a.CacheKey(), "img:")
	})
}

func TestLocalNotFound_Map(t *testing.T) {
	m := LocalNotFound{Provider: ProviderCBE, Reference: "FT1"}.Map()
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "Receipt not found", m["message"])
	assert.Equal(t, map[string]any{"reference": "FT1"}, m["data"])
}
