package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

func mustRequest(t *testing.T, provider, ref, suffix, phone string) models.ReferenceRequest {
	t.Helper()
	req, err := models.NewReferenceRequest(provider, ref, suffix, phone)
	require.NoError(t, err)
	return req
}

func TestVerifyReference_PostsPayloadWithAliases(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"amount":100.5}}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret")
	out, err := c.VerifyReference(context.Background(), mustRequest(t, "cbe", "FT25000ABCDE", "12345678", ""))
	require.NoError(t, err)

	assert.Equal(t, "/verify-cbe", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, map[string]string{
		"reference":     "FT25000ABCDE",
		"suffix":        "12345678",
		"accountSuffix": "12345678",
	}, gotBody)
	assert.Equal(t, true, out.Body["success"])
	data := out.Body["data"].(map[string]any)
	assert.Equal(t, json.Number("100.5"), data["amount"])
}

func TestVerifyReference_PhoneAliases(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-cbebirr", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").VerifyReference(context.Background(), mustRequest(t, "cbebirr", "ABC123", "", "0911"))
	require.NoError(t, err)
	assert.Equal(t, "0911", gotBody["phone"])
	assert.Equal(t, "0911", gotBody["phoneNumber"])
	assert.NotContains(t, gotBody, "suffix")
}

func TestVerifyReference_NonJSONBodyPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("gateway says hi"))
	}))
	defer srv.Close()

	out, err := New(srv.URL, "k").VerifyReference(context.Background(), mustRequest(t, "telebirr", "CE12ABC", "", ""))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rawText": "gateway says hi"}, out.Body)
}

func TestVerifyReference_HTTPErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Transaction not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").VerifyReference(context.Background(), mustRequest(t, "telebirr", "CE12ABC", "", ""))
	var upErr *Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, "Transaction not found", upErr.Body["message"])
}

func TestVerifyReference_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "k", WithTimeouts(time.Second, 50*time.Millisecond))
	_, err := c.VerifyReference(context.Background(), mustRequest(t, "telebirr", "CE12ABC", "", ""))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestVerifyReference_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "k").VerifyReference(context.Background(), mustRequest(t, "telebirr", "CE12ABC", "", ""))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestVerifyImage_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-image", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)

		assert.Equal(t, "receipt.png", hdr.Filename)
		assert.Equal(t, []byte{1, 2, 3}, content)
		assert.Equal(t, "1234", r.FormValue("suffix"))
		assert.Equal(t, "1234", r.FormValue("accountSuffix"))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	req, err := models.NewImageRequest([]byte{1, 2, 3}, "receipt.png", "cbe", "1234")
	require.NoError(t, err)

	out, err := New(srv.URL, "k").VerifyImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "success", out.Body["status"])
}

func TestVerifyImage_WithoutSuffixOmitsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotContains(t, r.MultipartForm.Value, "suffix")
		assert.NotContains(t, r.MultipartForm.Value, "accountSuffix")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	req, err := models.NewImageRequest([]byte{1, 2, 3}, "receipt.png", "telebirr", "")
	require.NoError(t, err)

	_, err = New(srv.URL, "k").VerifyImage(context.Background(), req)
	require.NoError(t, err)
}
