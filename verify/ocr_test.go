package verify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "image-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		w.Write([]byte(`{"text":"Aadhaar 1234 5678 9012","confidence":0.91}`))
	}))
	defer srv.Close()

	ex := NewHTTPExtractor(srv.URL, "secret")
	res, err := ex.Extract(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Aadhaar 1234 5678 9012" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence != 0.91 {
		t.Errorf("confidence = %v", res.Confidence)
	}
}

func TestHTTPExtractorClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	ex := NewHTTPExtractor(srv.URL, "")
	if _, err := ex.Extract(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
