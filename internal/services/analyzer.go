package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lllllllleong/teacherevaluation/internal/gcp"
	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// AnalyzerFunction backs the evidence-analyzer endpoint.
type AnalyzerFunction struct {
	evaluator   *Evaluator
	store       SubmissionStore
	defaultMode models.AnalysisMode
}

// NewAnalyzer creates an AnalyzerFunction from environment configuration.
// The Firestore store is wired only when FIRESTORE_ENABLED is not "false".
func NewAnalyzer(ctx context.Context) (*AnalyzerFunction, error) {
	cfg := LoadPipelineConfig()
	p, err := NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var store SubmissionStore
	if gcp.GetEnv("FIRESTORE_ENABLED", "true") != "false" {
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, gcp.GetEnv("FIRESTORE_DATABASE", ""))
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		store = NewFirestoreStore(client,
			gcp.GetEnv("SUBMISSIONS_COLLECTION", "submissions"),
			gcp.GetEnv("EVALUATIONS_COLLECTION", "evaluations"))
	}
	return NewAnalyzerFunction(p.Evaluator, store, cfg.Mode), nil
}

// NewAnalyzerFunction wires an analyzer from parts. store may be nil, in
// which case only link requests are served.
func NewAnalyzerFunction(evaluator *Evaluator, store SubmissionStore, defaultMode models.AnalysisMode) *AnalyzerFunction {
	if defaultMode == "" {
		defaultMode = models.ModePartial
	}
	return &AnalyzerFunction{evaluator: evaluator, store: store, defaultMode: defaultMode}
}

// Process evaluates a folder, either from a raw link or from a stored
// submission. Submission runs report progress and persist the result.
func (f *AnalyzerFunction) Process(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	mode, err := f.resolveMode(req.Mode)
	if err != nil {
		return nil, err
	}

	if req.SubmissionID == "" {
		if strings.TrimSpace(req.Link) == "" {
			return nil, badRequestError(errors.New("either link or submissionId is required"))
		}
		result, progress, err := f.evaluator.Run(ctx, RunRequest{Link: req.Link, Mode: mode}, nil)
		if err != nil {
			return nil, err
		}
		return &models.AnalyzeResponse{Status: "success", Result: result, Progress: progress}, nil
	}

	return f.processSubmission(ctx, req, mode)
}

func (f *AnalyzerFunction) processSubmission(ctx context.Context, req *models.AnalyzeRequest, mode models.AnalysisMode) (*models.AnalyzeResponse, error) {
	logCtx := slog.With("submissionId", req.SubmissionID, "executionId", req.ExecutionID)
	if f.store == nil {
		return nil, badRequestError(errors.New("submission lookups are disabled"))
	}

	sub, err := f.store.GetSubmission(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	link := sub.FolderLink
	if req.Link != "" {
		link = req.Link
	}

	// Progress writes are best effort and outlive a cancelled request so the
	// failed state still lands.
	observe := func(p models.Progress) {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := f.store.UpdateProgress(writeCtx, sub.ID, p); err != nil {
			logCtx.Warn("Failed to record progress.", "state", p.State, "error", err)
		}
	}

	result, progress, err := f.evaluator.Run(ctx, RunRequest{Link: link, Mode: mode, ArchiveKey: sub.ID}, observe)
	if err != nil {
		f.releaseSubmission(ctx, logCtx, sub.ID)
		return nil, err
	}

	if err := f.store.SaveEvaluation(ctx, sub, result, req.ExecutionID); err != nil {
		logCtx.Error("Failed to persist evaluation.", "error", err)
		f.releaseSubmission(ctx, logCtx, sub.ID)
		return nil, AsEvaluationError(fmt.Errorf("failed to save evaluation: %w", err))
	}
	logCtx.Info("Submission evaluated.", "totalScore", result.TotalScore, "grade", result.Grade)

	return &models.AnalyzeResponse{
		Status:       "success",
		SubmissionID: sub.ID,
		Result:       result,
		Progress:     progress,
	}, nil
}

// releaseSubmission returns a failed submission to draft so it can be
// dispatched again.
func (f *AnalyzerFunction) releaseSubmission(ctx context.Context, logCtx *slog.Logger, id string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := f.store.UpdateStatus(writeCtx, id, models.StatusDraft); err != nil {
		logCtx.Error("CRITICAL: Failed to release submission after a failed run.", "error", err)
	}
}

func (f *AnalyzerFunction) resolveMode(mode models.AnalysisMode) (models.AnalysisMode, error) {
	switch mode {
	case "":
		return f.defaultMode, nil
	case models.ModePartial, models.ModeDirect:
		return mode, nil
	default:
		return "", badRequestError(fmt.Errorf("unknown analysis mode %q", mode))
	}
}

// ServeHTTP decodes an AnalyzeRequest and writes the evaluation.
func (f *AnalyzerFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
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
