package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// StorageProvider is the read-only view of the remote evidence store.
type StorageProvider interface {
	ListChildren(ctx context.Context, folderID string) ([]models.DriveFile, error)
	Download(ctx context.Context, file models.DriveFile) (*models.RawEvidenceFile, error)
}

// DriveProvider implements StorageProvider over the Drive v3 API.
type DriveProvider struct {
	srv      *drive.Service
	maxBytes int64
}

// NewDriveProvider wraps srv. Downloads larger than maxBytes are rejected.
func NewDriveProvider(srv *drive.Service, maxBytes int64) *DriveProvider {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &DriveProvider{srv: srv, maxBytes: maxBytes}
}

// ListChildren returns the immediate, non-trashed children of folderID.
func (p *DriveProvider) ListChildren(ctx context.Context, folderID string) ([]models.DriveFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(folderID, "'", ""))

	var files []models.DriveFile
	err := p.srv.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType)").
		OrderBy("name").
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, models.DriveFile{ID: f.Id, Name: f.Name, MIMEType: f.MimeType})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive list %s: %w", folderID, err)
	}
	return files, nil
}

// Download fetches a file's bytes. Google Docs are exported as PDF so they
// can follow the document path.
func (p *DriveProvider) Download(ctx context.Context, file models.DriveFile) (*models.RawEvidenceFile, error) {
	mimeType := file.MIMEType
	var body io.ReadCloser
	if file.MIMEType == models.MIMETypeGoogleDoc {
		resp, err := p.srv.Files.Export(file.ID, models.MIMETypePDF).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("drive export %s: %w", file.Name, err)
		}
		body = resp.Body
		mimeType = models.MIMETypePDF
	} else {
		resp, err := p.srv.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("drive download %s: %w", file.Name, err)
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", file.Name, p.maxBytes)
	}

	return &models.RawEvidenceFile{ID: file.ID, Name: file.Name, MIMEType: mimeType, Data: data}, nil
}

// providerStatus extracts the HTTP status from a Google API error, or 0.
func providerStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
