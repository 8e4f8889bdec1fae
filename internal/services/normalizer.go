package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// DefaultMaxTextChars bounds the extracted text sent per document.
const DefaultMaxTextChars = 15000

// ContentNormalizer turns raw files into model-consumable evidence.
type ContentNormalizer struct {
	maxTextChars int
	extractText  func(data []byte) (string, error)
}

// NewContentNormalizer creates a normalizer that truncates document text
// to maxTextChars characters.
func NewContentNormalizer(maxTextChars int) *ContentNormalizer {
	if maxTextChars <= 0 {
		maxTextChars = DefaultMaxTextChars
	}
	return &ContentNormalizer{maxTextChars: maxTextChars, extractText: extractPDFText}
}

// Normalize converts one file. The second return is false when the file is
// unsupported or could not be read; that is never an error for the batch.
func (n *ContentNormalizer) Normalize(file models.RawEvidenceFile) (*models.NormalizedEvidence, bool) {
	logCtx := slog.With("file", file.Name, "mimeType", file.MIMEType)

	switch {
	case file.MIMEType == models.MIMETypePDF:
		text, err := n.extractText(file.Data)
		if err != nil {
			logCtx.Warn("PDF text extraction failed, excluding file.", "error", err)
			return nil, false
		}
		text = strings.TrimSpace(text)
		if text == "" {
			logCtx.Warn("PDF has no extractable text, excluding file.")
			return nil, false
		}
		return &models.NormalizedEvidence{
			Name:    file.Name,
			Kind:    models.EvidenceText,
			Payload: truncate(text, n.maxTextChars),
		}, true

	case strings.HasPrefix(file.MIMEType, "image/"):
		if len(file.Data) == 0 {
			logCtx.Warn("Image is empty, excluding file.")
			return nil, false
		}
		return &models.NormalizedEvidence{
			Name:     file.Name,
			Kind:     models.EvidenceImage,
			Payload:  base64.StdEncoding.EncodeToString(file.Data),
			MIMEType: file.MIMEType,
		}, true

	default:
		logCtx.Info("Unsupported evidence type, excluding file.")
		return nil, false
	}
}

// NormalizeAll normalizes files in order, dropping the ones that fail.
func (n *ContentNormalizer) NormalizeAll(files []models.RawEvidenceFile) []models.NormalizedEvidence {
	out := make([]models.NormalizedEvidence, 0, len(files))
	for _, f := range files {
		if ev, ok := n.Normalize(f); ok {
			out = append(out, *ev)
		}
	}
	return out
}

// truncate cuts text to max characters and appends the truncation marker.
func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + models.TruncationMarker
}

// extractPDFText validates the document with pdfcpu, then pulls its plain
// text layer.
func extractPDFText(data []byte) (text string, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pageCount, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("invalid pdf: %w", err)
	}
	if pageCount == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	// The text extractor panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf text extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	buf, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(buf), nil
}
