package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lllllllleong/teacherevaluation/internal/gcp"
	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// Archive keeps a copy of each run's findings transcript and result in a
// bucket. A nil Archive does nothing.
type Archive struct {
	bucket gcp.ObjectWriter
	now    func() time.Time
}

// NewArchive creates an archive writing through bucket.
func NewArchive(bucket gcp.ObjectWriter) *Archive {
	return &Archive{bucket: bucket, now: time.Now}
}

// SaveRun writes <key>/<timestamp>/findings.md and result.json. Existing
// objects are left untouched.
func (a *Archive) SaveRun(ctx context.Context, key, transcript string, result *models.EvaluationResult) error {
	if a == nil || a.bucket == nil {
		return nil
	}
	prefix := fmt.Sprintf("%s/%s", key, a.now().UTC().Format("20060102T150405Z"))

	if transcript != "" {
		if err := gcp.SaveAtomically(ctx, a.bucket, prefix+"/findings.md", transcript); err != nil {
			return fmt.Errorf("archive findings: %w", err)
		}
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := gcp.SaveAtomically(ctx, a.bucket, prefix+"/result.json", string(body)); err != nil {
		return fmt.Errorf("archive result: %w", err)
	}
	return nil
}
