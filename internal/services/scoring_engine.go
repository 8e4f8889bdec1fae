package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"

	"github.com/Lllllllleong/teacherevaluation/internal/gcp"
	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/scoring"
)

// DefaultCallTimeout is the processing allowance for one model call. It is
// also the floor: shorter values are raised to it.
const DefaultCallTimeout = 60 * time.Second

// ScoringEngineConfig tunes model invocation.
type ScoringEngineConfig struct {
	// CallTimeout bounds a single model call.
	CallTimeout time.Duration
	// RequestsPerMinute paces model calls client-side. 0 disables pacing.
	RequestsPerMinute int
}

// ScoringEngine sends evidence to the evaluator models and enforces the
// shape of what comes back.
type ScoringEngine struct {
	partial     gcp.ContentGenerator
	final       gcp.ContentGenerator
	retry       *RetryController
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// NewScoringEngine wires the two model passes behind one retry policy.
func NewScoringEngine(partial, final gcp.ContentGenerator, retry *RetryController, cfg ScoringEngineConfig) *ScoringEngine {
	if cfg.CallTimeout < DefaultCallTimeout {
		cfg.CallTimeout = DefaultCallTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if retry == nil {
		retry = NewRetryController(0, 0)
	}
	return &ScoringEngine{
		partial:     partial,
		final:       final,
		retry:       retry,
		limiter:     limiter,
		callTimeout: cfg.CallTimeout,
	}
}

// Partial asks the model for free-text findings about a single file.
func (e *ScoringEngine) Partial(ctx context.Context, ev models.NormalizedEvidence, onRetry func(attempt int)) (models.PartialFinding, error) {
	parts, err := evidenceParts(ev)
	if err != nil {
		return models.PartialFinding{}, internalError(err)
	}
	parts = append(parts, genai.Text(gcp.PartialUserPrompt))

	var findings string
	err = e.generate(ctx, e.partial, parts, onRetry, func(text string) error {
		if text == "" {
			return transientError(fmt.Errorf("empty findings for %s", ev.Name))
		}
		if isRefusal(text) {
			return newError(KindInternal, "رفض النموذج تحليل الملف.", fmt.Errorf("model refused to analyze %s", ev.Name))
		}
		findings = text
		return nil
	})
	if err != nil {
		return models.PartialFinding{}, err
	}
	return models.PartialFinding{FileName: ev.Name, Findings: findings}, nil
}

// Final asks for the structured judgment from a findings transcript.
func (e *ScoringEngine) Final(ctx context.Context, transcript string, onRetry func(attempt int)) (*models.EvaluationResult, error) {
	parts := []genai.Part{
		genai.Text(gcp.FinalUserPrompt),
		genai.Text("الأدلة المستخلصة من ملفات المعلم:\n\n" + transcript),
	}
	return e.finalCall(ctx, parts, onRetry)
}

// FinalDirect is the single-shot variant: every normalized file is attached
// to one final call with its filename.
func (e *ScoringEngine) FinalDirect(ctx context.Context, evidence []models.NormalizedEvidence, onRetry func(attempt int)) (*models.EvaluationResult, error) {
	parts := []genai.Part{genai.Text(gcp.FinalUserPrompt)}
	for _, ev := range evidence {
		evParts, err := evidenceParts(ev)
		if err != nil {
			slog.Warn("Skipping undecodable evidence in direct mode.", "file", ev.Name, "error", err)
			continue
		}
		parts = append(parts, evParts...)
	}
	return e.finalCall(ctx, parts, onRetry)
}

func (e *ScoringEngine) finalCall(ctx context.Context, parts []genai.Part, onRetry func(attempt int)) (*models.EvaluationResult, error) {
	var result *models.EvaluationResult
	err := e.generate(ctx, e.final, parts, onRetry, func(text string) error {
		parsed, err := ParseEvaluation(text)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// generate runs one paced, time-bounded model call under the retry policy.
// parse decides whether the reply is usable; its errors are retried like
// call errors when they are transient.
func (e *ScoringEngine) generate(ctx context.Context, model gcp.ContentGenerator, parts []genai.Part, onRetry func(attempt int), parse func(text string) error) error {
	return e.retry.Do(ctx, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return transientError(fmt.Errorf("waiting for model quota: %w", err))
		}
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()

		resp, err := model.GenerateContent(callCtx, parts...)
		if err != nil {
			return err
		}
		return parse(responseText(resp))
	}, onRetry)
}

func evidenceParts(ev models.NormalizedEvidence) ([]genai.Part, error) {
	header := genai.Text("اسم الملف: " + ev.Name)
	switch ev.Kind {
	case models.EvidenceText:
		return []genai.Part{header, genai.Text(ev.Payload)}, nil
	case models.EvidenceImage:
		data, err := base64.StdEncoding.DecodeString(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode image %s: %w", ev.Name, err)
		}
		return []genai.Part{header, genai.Blob{MIMEType: ev.MIMEType, Data: data}}, nil
	default:
		return nil, fmt.Errorf("unknown evidence kind %q for %s", ev.Kind, ev.Name)
	}
}

// evaluationPayload is the wire shape of the final pass.
type evaluationPayload struct {
	Scores         map[string]any `json:"scores"`
	Justifications []string       `json:"justifications"`
	Strengths      []string       `json:"strengths"`
	Weaknesses     []string       `json:"weaknesses"`
	Recommendation string         `json:"recommendation"`
}

// ParseEvaluation validates a final-pass reply and converts it into a
// scored result. Text that is not JSON is transient; JSON missing any
// criterion score is a schema violation.
func ParseEvaluation(text string) (*models.EvaluationResult, error) {
	clean := trimFences(text)
	if err := decodeJSONBody([]byte(clean)); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	var payload evaluationPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, schemaViolationError(fmt.Errorf("decode evaluation: %w", err))
	}
	if payload.Scores == nil {
		return nil, schemaViolationError(fmt.Errorf("response has no scores object"))
	}
	for _, c := range models.Criteria {
		if _, ok := payload.Scores[strconv.Itoa(c.ID)]; !ok {
			return nil, schemaViolationError(fmt.Errorf("response is missing score for criterion %d", c.ID))
		}
	}

	justifications := make([]string, models.CriterionCount)
	copy(justifications, payload.Justifications)

	result := &models.EvaluationResult{
		Scores:         scoring.Normalize(payload.Scores),
		Justifications: justifications,
		Strengths:      nonNil(payload.Strengths),
		Weaknesses:     nonNil(payload.Weaknesses),
		Recommendation: strings.TrimSpace(payload.Recommendation),
	}
	scoring.Apply(result)
	return result, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
