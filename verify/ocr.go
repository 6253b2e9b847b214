package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
)

// HTTPExtractor talks to a self-hosted OCR service (tesseract behind HTTP)
// that accepts a raw image body and answers {"text": ..., "confidence": ...}.
type HTTPExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPExtractor(endpoint, apiKey string) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) (ExtractResult, error) {
	var out struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}

	// Client errors will not improve on retry, so the attempt loop stops
	// and reports them directly.
	var permanent error
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	err := r.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(image))
		if err != nil {
			permanent = err
			return nil
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("ocr status %d: %s", resp.StatusCode, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				permanent = err
				return nil
			}
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err == nil {
		err = permanent
	}
	if err != nil {
		return ExtractResult{}, fmt.Errorf("verify: extract text: %w", err)
	}
	return ExtractResult{Text: out.Text, Confidence: out.Confidence}, nil
}
