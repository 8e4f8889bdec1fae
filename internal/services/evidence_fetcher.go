package services

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// DefaultMaxFiles caps how many files one evaluation considers.
const DefaultMaxFiles = 10

// EvidenceFetcher lists a folder's evidence files and downloads them.
type EvidenceFetcher struct {
	provider    StorageProvider
	maxFiles    int
	concurrency int
}

// NewEvidenceFetcher creates a fetcher. Non-positive limits fall back to
// defaults.
func NewEvidenceFetcher(provider StorageProvider, maxFiles, concurrency int) *EvidenceFetcher {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &EvidenceFetcher{provider: provider, maxFiles: maxFiles, concurrency: concurrency}
}

// SupportedMIMEType reports whether the pipeline can normalize a file of
// this type.
func SupportedMIMEType(mimeType string) bool {
	return mimeType == models.MIMETypePDF ||
		mimeType == models.MIMETypeGoogleDoc ||
		strings.HasPrefix(mimeType, "image/")
}

// List returns up to maxFiles supported, non-folder children of folderID.
// A failed listing is an access error; a folder with nothing usable is an
// empty-folder error.
func (f *EvidenceFetcher) List(ctx context.Context, folderID string) ([]models.DriveFile, error) {
	logCtx := slog.With("folderId", folderID)

	children, err := f.provider.ListChildren(ctx, folderID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transientError(err)
		}
		logCtx.Error("Folder listing failed", "error", err, "providerStatus", providerStatus(err))
		return nil, accessError(err)
	}

	var eligible []models.DriveFile
	for _, c := range children {
		if c.IsFolder() {
			continue
		}
		if !SupportedMIMEType(c.MIMEType) {
			logCtx.Info("Skipping unsupported file type.", "file", c.Name, "mimeType", c.MIMEType)
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		logCtx.Warn("Folder has no supported evidence files.", "childCount", len(children))
		return nil, emptyFolderError()
	}
	if len(eligible) > f.maxFiles {
		logCtx.Info("Capping evidence files.", "found", len(eligible), "maxFiles", f.maxFiles)
		eligible = eligible[:f.maxFiles]
	}
	return eligible, nil
}

// Fetch downloads files concurrently. A file that fails is logged and left
// out; the rest keep their input order.
func (f *EvidenceFetcher) Fetch(ctx context.Context, files []models.DriveFile) []models.RawEvidenceFile {
	results := make([]*models.RawEvidenceFile, len(files))

	var eg errgroup.Group
	eg.SetLimit(f.concurrency)
	for i, file := range files {
		eg.Go(func() error {
			raw, err := f.provider.Download(ctx, file)
			if err != nil {
				slog.Warn("Evidence download failed, excluding file.", "file", file.Name, "fileId", file.ID, "error", err)
				return nil
			}
			results[i] = raw
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]models.RawEvidenceFile, 0, len(files))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// FetchFolder lists and downloads a folder's evidence in one step.
func (f *EvidenceFetcher) FetchFolder(ctx context.Context, folderID string) ([]models.RawEvidenceFile, error) {
	files, err := f.List(ctx, folderID)
	if err != nil {
		return nil, err
	}
	raw := f.Fetch(ctx, files)
	if len(raw) == 0 {
		return nil, emptyFolderError()
	}
	return raw, nil
}
