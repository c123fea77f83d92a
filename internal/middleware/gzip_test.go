package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler возвращает тело запроса с тем же Content-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append([]byte("echo:"), body...))
}

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func readResponse(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestGzipMiddleware(t *testing.T) {
	cases := []struct {
		name           string
		body           string
		contentType    string
		acceptEncoding string
		gzipRequest    bool
		wantCompressed bool
	}{
		{name: "json compressed", body: `{"items":[{"product_id":"lamp","quantity":2}]}`,
			contentType: "application/json", acceptEncoding: "gzip", wantCompressed: true},
		{name: "text with charset compressed", body: "coupon LAUNCH10",
			contentType: "text/plain; charset=utf-8", acceptEncoding: "gzip, deflate", wantCompressed: true},
		{name: "image left as is", body: "png bytes",
			contentType: "image/png", acceptEncoding: "gzip"},
		{name: "client without gzip", body: "<p>hi</p>",
			contentType: "text/html"},
		{name: "gzip request body", body: `{"amount":"90.00"}`,
			contentType: "application/json", acceptEncoding: "gzip", gzipRequest: true, wantCompressed: true},
		{name: "gzip request plain response", body: `{"amount":"90.00"}`,
			contentType: "application/json", gzipRequest: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tc.body)
			if tc.gzipRequest {
				body = gzipped(t, tc.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", body)
			req.Header.Set("Content-Type", tc.contentType)
			if tc.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tc.acceptEncoding)
			}
			if tc.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tc.contentType, res.Header.Get("Content-Type"))
			if tc.wantCompressed {
				assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
			} else {
				assert.Empty(t, res.Header.Get("Content-Encoding"))
			}
			assert.Equal(t, "echo:"+tc.body, readResponse(t, res))
		})
	}
}

func TestGzipMiddleware_NoContent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}

func TestGzipMiddleware_InvalidRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
