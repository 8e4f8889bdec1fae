package services

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// ScannerFunction backs the folder-scanner endpoint.
type ScannerFunction struct {
	evaluator *Evaluator
}

// NewScanner creates a ScannerFunction from environment configuration.
func NewScanner(ctx context.Context) (*ScannerFunction, error) {
	p, err := NewScanPipeline(ctx, LoadPipelineConfig())
	if err != nil {
		return nil, err
	}
	return NewScannerFunction(p.Evaluator), nil
}

// NewScannerFunction wraps an existing evaluator.
func NewScannerFunction(evaluator *Evaluator) *ScannerFunction {
	return &ScannerFunction{evaluator: evaluator}
}

// Process lists the evidence files behind a folder link.
func (f *ScannerFunction) Process(ctx context.Context, req *models.ScanFolderRequest) (*models.ScanFolderResponse, error) {
	resp, err := f.evaluator.Scan(ctx, req.Link)
	if err != nil {
		return nil, err
	}
	slog.Info("Folder scanned.", "folderId", resp.FolderID, "files", len(resp.Files))
	return resp, nil
}

// ServeHTTP decodes a ScanFolderRequest and writes the listing.
func (f *ScannerFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.ScanFolderRequest
	if err := DecodeRequest(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	resp, err := f.Process(r.Context(), &req)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
