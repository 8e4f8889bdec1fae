package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/teacherevaluation/internal/gcp"
	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// PipelineConfig holds every tunable of the evaluation pipeline. Functions
// load it from the environment; evalctl fills it from viper.
type PipelineConfig struct {
	ProjectID            string
	VertexAIRegion       string
	ModelName            string
	DriveCredentialsFile string
	MaxFiles             int
	MaxTextChars         int
	DownloadConcurrency  int
	RunTimeout           time.Duration
	PartialConcurrency   int
	ModelRPM             int
	CallTimeout          time.Duration
	MaxAttempts          int
	BaseDelay            time.Duration
	CacheTTL             time.Duration
	ArchiveBucket        string
	Mode                 models.AnalysisMode
}

// LoadPipelineConfig reads PipelineConfig from environment variables.
func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ProjectID:            gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:       gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelName:            gcp.GetEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		DriveCredentialsFile: gcp.GetEnv("DRIVE_CREDENTIALS_FILE", ""),
		MaxFiles:             gcp.GetEnvInt("MAX_FILES", DefaultMaxFiles),
		MaxTextChars:         gcp.GetEnvInt("MAX_TEXT_CHARS", DefaultMaxTextChars),
		DownloadConcurrency:  gcp.GetEnvInt("DOWNLOAD_CONCURRENCY", 4),
		RunTimeout:           gcp.GetEnvDuration("RUN_TIMEOUT", DefaultRunTimeout),
		PartialConcurrency:   gcp.GetEnvInt("PARTIAL_CONCURRENCY", 1),
		ModelRPM:             gcp.GetEnvInt("MODEL_RPM", 0),
		CallTimeout:          gcp.GetEnvDuration("MODEL_CALL_TIMEOUT", DefaultCallTimeout),
		MaxAttempts:          gcp.GetEnvInt("MAX_ATTEMPTS", DefaultMaxAttempts),
		BaseDelay:            gcp.GetEnvDuration("RETRY_BASE_DELAY", DefaultBaseDelay),
		CacheTTL:             gcp.GetEnvDuration("FINDINGS_CACHE_TTL", 30*time.Minute),
		ArchiveBucket:        gcp.GetEnv("ARCHIVE_BUCKET", ""),
		Mode:                 models.AnalysisMode(gcp.GetEnv("ANALYSIS_MODE", string(models.ModePartial))),
	}
}

// ScoringEngineConfig derives the model-call policy.
func (cfg PipelineConfig) ScoringEngineConfig() ScoringEngineConfig {
	return ScoringEngineConfig{CallTimeout: cfg.CallTimeout, RequestsPerMinute: cfg.ModelRPM}
}

// Pipeline bundles an Evaluator with the clients it owns.
type Pipeline struct {
	Evaluator *Evaluator
	vertex    *gcp.VertexClient
	storage   *storage.Client
}

// Close releases the underlying clients.
func (p *Pipeline) Close() error {
	if p.storage != nil {
		if err := p.storage.Close(); err != nil {
			slog.Warn("Closing storage client failed.", "error", err)
		}
	}
	if p.vertex != nil {
		return p.vertex.Close()
	}
	return nil
}

// NewScanPipeline builds an Evaluator that can only list folders. It needs
// Drive access and nothing else.
func NewScanPipeline(ctx context.Context, cfg PipelineConfig) (*Pipeline, error) {
	srv, err := gcp.NewDriveService(ctx, cfg.DriveCredentialsFile)
	if err != nil {
		return nil, err
	}
	fetcher := NewEvidenceFetcher(NewDriveProvider(srv, 0), cfg.MaxFiles, cfg.DownloadConcurrency)
	return &Pipeline{Evaluator: &Evaluator{fetcher: fetcher}}, nil
}

// NewPipeline builds the full evaluation pipeline from cfg.
func NewPipeline(ctx context.Context, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	srv, err := gcp.NewDriveService(ctx, cfg.DriveCredentialsFile)
	if err != nil {
		return nil, err
	}

	vertexClient, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID: cfg.ProjectID,
		Region:    cfg.VertexAIRegion,
		ModelName: cfg.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	p := &Pipeline{vertex: vertexClient}

	var archive *Archive
	if cfg.ArchiveBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			_ = vertexClient.Close()
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		p.storage = storageClient
		archive = NewArchive(gcp.BucketWriter{Bucket: storageClient.Bucket(cfg.ArchiveBucket)})
	}

	engine := NewScoringEngine(
		vertexClient.PartialModel,
		vertexClient.FinalModel,
		NewRetryController(cfg.MaxAttempts, cfg.BaseDelay),
		cfg.ScoringEngineConfig(),
	)
	p.Evaluator = NewEvaluator(
		NewEvidenceFetcher(NewDriveProvider(srv, 0), cfg.MaxFiles, cfg.DownloadConcurrency),
		NewContentNormalizer(cfg.MaxTextChars),
		engine,
		NewFindingsCache(cfg.CacheTTL),
		archive,
		EvaluatorConfig{RunTimeout: cfg.RunTimeout, PartialConcurrency: cfg.PartialConcurrency},
	)
	return p, nil
}
