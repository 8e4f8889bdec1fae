package models

import (
	"fmt"
	"strings"
)

// MIME types the pipeline treats specially.
const (
	MIMETypeFolder    = "application/vnd.google-apps.folder"
	MIMETypePDF       = "application/pdf"
	MIMETypeGoogleDoc = "application/vnd.google-apps.document"
)

// TruncationMarker is appended to document text cut at the character limit.
const TruncationMarker = "\n\n[... تم اقتطاع بقية النص ...]"

// DriveFile is one child entry of a remote evidence folder.
type DriveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// IsFolder reports whether the entry is a sub-folder.
func (f DriveFile) IsFolder() bool {
	return f.MIMEType == MIMETypeFolder
}

// RawEvidenceFile holds the downloaded bytes of one evidence file.
type RawEvidenceFile struct {
	ID       string
	Name     string
	MIMEType string
	Data     []byte
}

// EvidenceKind tells the model how to read a normalized payload.
type EvidenceKind string

const (
	EvidenceText  EvidenceKind = "text"
	EvidenceImage EvidenceKind = "image"
)

// NormalizedEvidence is a file in a form the model can consume: extracted
// text for documents, base64 for images.
type NormalizedEvidence struct {
	Name     string       `json:"name"`
	Kind     EvidenceKind `json:"kind"`
	Payload  string       `json:"payload"`
	MIMEType string       `json:"mimeType,omitempty"`
}

// PartialFinding is the model's free-text summary of a single file.
type PartialFinding struct {
	FileName string `json:"fileName"`
	Findings string `json:"findings"`
}

// FindingsTranscript joins partial findings into the single text the final
// pass reads. Order follows the input slice.
func FindingsTranscript(findings []PartialFinding) string {
	var b strings.Builder
	for i, f := range findings {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "### الملف: %s\n%s", f.FileName, strings.TrimSpace(f.Findings))
	}
	return b.String()
}
