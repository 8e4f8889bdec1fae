package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// DefaultRunTimeout bounds one whole evaluation run.
const DefaultRunTimeout = 60 * time.Second

// maxPartialConcurrency caps parallel per-file model calls.
const maxPartialConcurrency = 3

// EvaluatorConfig holds the run-level policy.
type EvaluatorConfig struct {
	RunTimeout         time.Duration
	PartialConcurrency int
}

// Evaluator drives one evaluation from a folder link to a scored result.
type Evaluator struct {
	fetcher    *EvidenceFetcher
	normalizer *ContentNormalizer
	engine     *ScoringEngine
	cache      *FindingsCache
	archive    *Archive
	config     EvaluatorConfig
}

// NewEvaluator wires the pipeline stages. cache and archive may be nil.
func NewEvaluator(fetcher *EvidenceFetcher, normalizer *ContentNormalizer, engine *ScoringEngine, cache *FindingsCache, archive *Archive, config EvaluatorConfig) *Evaluator {
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if config.PartialConcurrency <= 0 {
		config.PartialConcurrency = 1
	}
	if config.PartialConcurrency > maxPartialConcurrency {
		config.PartialConcurrency = maxPartialConcurrency
	}
	return &Evaluator{
		fetcher:    fetcher,
		normalizer: normalizer,
		engine:     engine,
		cache:      cache,
		archive:    archive,
		config:     config,
	}
}

// RunRequest describes one evaluation run.
type RunRequest struct {
	Link string
	Mode models.AnalysisMode
	// ArchiveKey groups archived artifacts; the folder id is used when empty.
	ArchiveKey string
}

// Scan resolves a link and lists the evidence files it would evaluate.
func (e *Evaluator) Scan(ctx context.Context, link string) (*models.ScanFolderResponse, error) {
	folderID, err := ResolveFolderID(link)
	if err != nil {
		return nil, err
	}
	files, err := e.fetcher.List(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return &models.ScanFolderResponse{FolderID: folderID, Files: files}, nil
}

// Run executes the full pipeline. observe may be nil.
func (e *Evaluator) Run(ctx context.Context, req RunRequest, observe Observer) (*models.EvaluationResult, models.Progress, error) {
	tracker := newRunTracker(observe)
	result, err := e.run(ctx, req, tracker)
	if err != nil {
		evalErr := AsEvaluationError(err)
		tracker.fail(evalErr.Message)
		return nil, tracker.snapshot(), evalErr
	}
	return result, tracker.snapshot(), nil
}

func (e *Evaluator) run(ctx context.Context, req RunRequest, tracker *runTracker) (*models.EvaluationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.RunTimeout)
	defer cancel()

	folderID, err := ResolveFolderID(req.Link)
	if err != nil {
		return nil, err
	}
	logCtx := slog.With("folderId", folderID, "mode", req.Mode)
	logCtx.Info("Starting evaluation run.")

	if err := tracker.transition(models.StateScanning, 0, "جارٍ قراءة ملفات المجلد"); err != nil {
		return nil, internalError(err)
	}
	raw, err := e.fetcher.FetchFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	evidence := e.normalizer.NormalizeAll(raw)
	if len(evidence) == 0 {
		logCtx.Warn("No file survived normalization.", "downloaded", len(raw))
		return nil, emptyFolderError()
	}
	logCtx.Info("Evidence normalized.", "downloaded", len(raw), "usable", len(evidence))

	var (
		result     *models.EvaluationResult
		transcript string
	)
	onRetry := func(attempt int) {
		tracker.note(fmt.Sprintf("الخدمة مشغولة، إعادة المحاولة %d", attempt))
	}

	if req.Mode == models.ModeDirect {
		if err := tracker.transition(models.StateFinalizing, 1, "جارٍ إعداد التقييم النهائي"); err != nil {
			return nil, internalError(err)
		}
		result, err = e.engine.FinalDirect(ctx, evidence, onRetry)
	} else {
		if err := tracker.transition(models.StateScoring, len(evidence), "جارٍ تحليل الملفات"); err != nil {
			return nil, internalError(err)
		}
		findings, scoreErr := e.scoreFiles(ctx, evidence, tracker, onRetry)
		if len(findings) == 0 {
			if scoreErr == nil {
				scoreErr = emptyFolderError()
			}
			return nil, scoreErr
		}
		transcript = models.FindingsTranscript(findings)
		if err := tracker.transition(models.StateFinalizing, 1, "جارٍ إعداد التقييم النهائي"); err != nil {
			return nil, internalError(err)
		}
		result, err = e.engine.Final(ctx, transcript, onRetry)
	}
	if err != nil {
		logCtx.Error("Final evaluation failed.", "error", err)
		return nil, err
	}

	result.FileCount = len(evidence)
	result.EvaluatedAt = time.Now().UTC()

	archiveKey := req.ArchiveKey
	if archiveKey == "" {
		archiveKey = folderID
	}
	if err := e.archive.SaveRun(ctx, archiveKey, transcript, result); err != nil {
		logCtx.Warn("Archiving run failed.", "error", err)
	}

	if err := tracker.transition(models.StateComplete, len(evidence), "اكتمل التقييم"); err != nil {
		return nil, internalError(err)
	}
	logCtx.Info("Evaluation run complete.", "totalScore", result.TotalScore, "grade", result.Grade)
	return result, nil
}

// scoreFiles runs the partial pass. A failed file is logged and skipped;
// the returned findings keep input order. The last per-file error is
// returned for the caller to report if nothing succeeded.
func (e *Evaluator) scoreFiles(ctx context.Context, evidence []models.NormalizedEvidence, tracker *runTracker, onRetry func(attempt int)) ([]models.PartialFinding, error) {
	results := make([]*models.PartialFinding, len(evidence))
	var (
		mu      sync.Mutex
		lastErr error
	)

	scoreOne := func(i int) {
		ev := evidence[i]
		defer tracker.step(fmt.Sprintf("تم تحليل %s", ev.Name))

		if cached, ok := e.cache.Get(ev); ok {
			results[i] = &cached
			return
		}
		finding, err := e.engine.Partial(ctx, ev, onRetry)
		if err != nil {
			slog.Warn("Partial evaluation failed, excluding file.", "file", ev.Name, "error", err)
			mu.Lock()
			lastErr = err
			mu.Unlock()
			return
		}
		e.cache.Set(ev, finding)
		results[i] = &finding
	}

	if e.config.PartialConcurrency == 1 {
		for i := range evidence {
			if ctx.Err() != nil {
				break
			}
			scoreOne(i)
		}
	} else {
		var eg errgroup.Group
		eg.SetLimit(e.config.PartialConcurrency)
		for i := range evidence {
			eg.Go(func() error {
				if ctx.Err() == nil {
					scoreOne(i)
				}
				return nil
			})
		}
		_ = eg.Wait()
	}

	findings := make([]models.PartialFinding, 0, len(evidence))
	for _, r := range results {
		if r != nil {
			findings = append(findings, *r)
		}
	}
	if ctx.Err() != nil && lastErr == nil {
		lastErr = transientError(ctx.Err())
	}
	return findings, lastErr
}
