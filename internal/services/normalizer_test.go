package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

func stubNormalizer(max int, text string, err error) *ContentNormalizer {
	n := NewContentNormalizer(max)
	n.extractText = func([]byte) (string, error) { return text, err }
	return n
}

func TestNormalize_PDFTruncation(t *testing.T) {
	n := stubNormalizer(0, strings.Repeat("a", 20000), nil)

	ev, ok := n.Normalize(models.RawEvidenceFile{Name: "long.pdf", MIMEType: models.MIMETypePDF, Data: []byte("%PDF")})
	require.True(t, ok)
	assert.Equal(t, models.EvidenceText, ev.Kind)
	assert.Equal(t, DefaultMaxTextChars+utf8.RuneCountInString(models.TruncationMarker), utf8.RuneCountInString(ev.Payload))
	assert.True(t, strings.HasSuffix(ev.Payload, models.TruncationMarker))
}

func TestNormalize_PDFShortTextUntouched(t *testing.T) {
	n := stubNormalizer(100, "  خطة درس أسبوعية  ", nil)

	ev, ok := n.Normalize(models.RawEvidenceFile{Name: "plan.pdf", MIMEType: models.MIMETypePDF})
	require.True(t, ok)
	assert.Equal(t, "خطة درس أسبوعية", ev.Payload)
}

func TestNormalize_TruncatesByCharacterNotByte(t *testing.T) {
	n := stubNormalizer(3, "أبجدهوز", nil)

	ev, ok := n.Normalize(models.RawEvidenceFile{Name: "ar.pdf", MIMEType: models.MIMETypePDF})
	require.True(t, ok)
	assert.Equal(t, "أبج"+models.TruncationMarker, ev.Payload)
}

func TestNormalize_Image(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	ev, ok := NewContentNormalizer(0).Normalize(models.RawEvidenceFile{Name: "board.png", MIMEType: "image/png", Data: data})
	require.True(t, ok)
	assert.Equal(t, models.EvidenceImage, ev.Kind)
	assert.Equal(t, "image/png", ev.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), ev.Payload)
}

func TestNormalize_Dropped(t *testing.T) {
	tests := []struct {
		name string
		n    *ContentNormalizer
		file models.RawEvidenceFile
	}{
		{
			name: "unsupported type",
			n:    NewContentNormalizer(0),
			file: models.RawEvidenceFile{Name: "notes.docx", MIMEType: "application/msword", Data: []byte("x")},
		},
		{
			name: "corrupt pdf",
			n:    NewContentNormalizer(0),
			file: models.RawEvidenceFile{Name: "broken.pdf", MIMEType: models.MIMETypePDF, Data: []byte("definitely not a pdf")},
		},
		{
			name: "extraction error",
			n:    stubNormalizer(0, "", errors.New("decode failed")),
			file: models.RawEvidenceFile{Name: "bad.pdf", MIMEType: models.MIMETypePDF},
		},
		{
			name: "scanned pdf without text",
			n:    stubNormalizer(0, "   \n ", nil),
			file: models.RawEvidenceFile{Name: "scan.pdf", MIMEType: models.MIMETypePDF},
		},
		{
			name: "empty image",
			n:    NewContentNormalizer(0),
			file: models.RawEvidenceFile{Name: "blank.jpg", MIMEType: "image/jpeg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := tt.n.Normalize(tt.file)
			assert.False(t, ok)
			assert.Nil(t, ev)
		})
	}
}

func TestNormalizeAll_KeepsOrderDropsFailures(t *testing.T) {
	n := stubNormalizer(0, "text", nil)
	files := []models.RawEvidenceFile{
		{Name: "1.pdf", MIMEType: models.MIMETypePDF},
		{Name: "2.xlsx", MIMEType: "application/vnd.ms-excel"},
		{Name: "3.jpg", MIMEType: "image/jpeg", Data: []byte{1}},
	}
	out := n.NormalizeAll(files)
	require.Len(t, out, 2)
	assert.Equal(t, "1.pdf", out[0].Name)
	assert.Equal(t, "3.jpg", out[1].Name)
}

// onePagePDF builds a minimal single-page PDF whose content stream shows
// text in Helvetica. Offsets in the xref table are computed as written.
func onePagePDF(text string) []byte {
	content := "BT /F1 12 Tf 72 720 Td (" + text + ") Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestNormalize_RealPDFExtraction(t *testing.T) {
	n := NewContentNormalizer(0)

	ev, ok := n.Normalize(models.RawEvidenceFile{
		Name:     "lesson-plan.pdf",
		MIMEType: models.MIMETypePDF,
		Data:     onePagePDF("Weekly lesson plan with assessment rubric"),
	})
	require.True(t, ok)
	assert.Equal(t, models.EvidenceText, ev.Kind)
	assert.Equal(t, "lesson-plan.pdf", ev.Name)
	assert.Contains(t, ev.Payload, "Weekly lesson plan with assessment rubric")
	assert.False(t, strings.HasSuffix(ev.Payload, models.TruncationMarker))
}

func TestNormalize_RealPDFTruncation(t *testing.T) {
	n := NewContentNormalizer(0)
	long := strings.Repeat("evidence", 2000)

	ev, ok := n.Normalize(models.RawEvidenceFile{
		Name:     "portfolio.pdf",
		MIMEType: models.MIMETypePDF,
		Data:     onePagePDF(long),
	})
	require.True(t, ok)
	assert.Equal(t, models.EvidenceText, ev.Kind)
	assert.True(t, strings.HasSuffix(ev.Payload, models.TruncationMarker))
	assert.Equal(t, DefaultMaxTextChars+utf8.RuneCountInString(models.TruncationMarker), utf8.RuneCountInString(ev.Payload))
	assert.True(t, strings.HasPrefix(ev.Payload, "evidenceevidence"))
}
