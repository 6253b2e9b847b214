// Package verify scans identity documents for Aadhaar number candidates.
// Text extraction and blob storage are opaque collaborators so the OCR
// engine and the storage backend stay swappable.
package verify

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ErrNoText signals the extractor produced no usable text.
var ErrNoText = errors.New("verify: no text extracted from document")

// ExtractResult is the raw OCR output.
type ExtractResult struct {
	Text string
	// Confidence is the extractor's own 0..1 estimate, 0 when unknown.
	Confidence float64
}

// TextExtractor pulls text out of a document image.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) (ExtractResult, error)
}

// Uploader stores the document image and returns its public reference.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Report is the outcome of one document scan.
type Report struct {
	// Candidates holds every 12-digit Aadhaar-shaped number found,
	// separators stripped, in order of appearance.
	Candidates []string
	Verified   bool
	Confidence float64
	// ImageURL is set when the upload succeeded; upload failure never
	// fails the scan.
	ImageURL string
}

// Groups of 4-4-4 or a bare 12-digit run, with spaces or hyphens between
// groups as printed on the card.
var aadhaarPattern = regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}\b`)

var separators = strings.NewReplacer(" ", "", "-", "")

// Service runs document scans.
type Service struct {
	extractor TextExtractor
	uploader  Uploader
	logger    *zap.Logger
}

func NewService(extractor TextExtractor, uploader Uploader, logger *zap.Logger) *Service {
	return &Service{extractor: extractor, uploader: uploader, logger: logger}
}

// ScanAadhaar extracts text from the image and reports every Aadhaar number
// candidate. The image is uploaded for later review on a best-effort basis.
func (s *Service) ScanAadhaar(ctx context.Context, fileName string, image []byte) (Report, error) {
	res, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return Report{}, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return Report{}, ErrNoText
	}

	report := Report{
		Candidates: ScanText(res.Text),
		Confidence: res.Confidence,
	}
	report.Verified = len(report.Candidates) > 0

	if s.uploader != nil {
		url, err := s.uploader.Upload(ctx, fileName, image)
		if err != nil {
			s.logger.Warn("document upload failed",
				zap.String("file", fileName),
				zap.Error(err))
		} else {
			report.ImageURL = url
		}
	}
	return report, nil
}

// ScanText returns the Aadhaar number candidates in the text, separators
// stripped, duplicates removed.
func ScanText(text string) []string {
	matches := aadhaarPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		num := separators.Replace(m)
		if len(num) != 12 {
			continue
		}
		if _, ok := seen[num]; ok {
			continue
		}
		seen[num] = struct{}{}
		out = append(out, num)
	}
	return out
}
