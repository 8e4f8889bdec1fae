package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

func newTestEngine(partial, final *fakeGenerator) (*ScoringEngine, *[]time.Duration) {
	rc, delays := recordingController()
	return NewScoringEngine(partial, final, rc, ScoringEngineConfig{}), delays
}

func TestParseEvaluation_Valid(t *testing.T) {
	result, err := ParseEvaluation("```json\n" + validFinalJSON + "\n```")
	require.NoError(t, err)

	assert.Equal(t, 5, result.Scores[1])
	assert.Equal(t, 3, result.Scores[10])
	assert.Len(t, result.Justifications, models.CriterionCount)
	assert.Equal(t, "j11", result.Justifications[10])
	assert.Equal(t, []string{"خطط دروس مكتملة"}, result.Strengths)
	assert.InDelta(t, 82.0, result.TotalScore, 1e-9)
	assert.Equal(t, models.GradeVeryGood, result.Grade)
}

func TestParseEvaluation_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind ErrorKind
	}{
		{name: "not json", text: "Sorry, here is my evaluation: great teacher", kind: KindTransient},
		{name: "empty", text: "", kind: KindTransient},
		{name: "missing key 11", text: `{"scores":{"1":3,"2":3,"3":3,"4":3,"5":3,"6":3,"7":3,"8":3,"9":3,"10":3},"justifications":[],"strengths":[],"weaknesses":[],"recommendation":""}`, kind: KindSchemaViolation},
		{name: "no scores", text: `{"justification":"flat shape"}`, kind: KindSchemaViolation},
		{name: "array", text: `[1,2,3]`, kind: KindSchemaViolation},
		{name: "provider error envelope", text: `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`, kind: KindRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvaluation(tt.text)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestParseEvaluation_PadsShortJustifications(t *testing.T) {
	text := `{"scores":{"1":1,"2":1,"3":1,"4":1,"5":1,"6":1,"7":1,"8":1,"9":1,"10":1,"11":1},"justifications":["only one"],"strengths":null,"weaknesses":["no evidence"],"recommendation":" upload evidence "}`
	result, err := ParseEvaluation(text)
	require.NoError(t, err)
	assert.Len(t, result.Justifications, models.CriterionCount)
	assert.Equal(t, "only one", result.Justifications[0])
	assert.Equal(t, "", result.Justifications[10])
	assert.NotNil(t, result.Strengths)
	assert.Equal(t, "upload evidence", result.Recommendation)
	assert.InDelta(t, 20.0, result.TotalScore, 1e-9)
	assert.Equal(t, models.GradeUnsatisfactory, result.Grade)
}

func TestScoringEngine_PartialText(t *testing.T) {
	partial := &fakeGenerator{responses: []fakeResponse{{text: "يدعم المعيار 6 بخطة مكتملة."}}}
	engine, _ := newTestEngine(partial, &fakeGenerator{})

	finding, err := engine.Partial(context.Background(), models.NormalizedEvidence{Name: "plan.pdf", Kind: models.EvidenceText, Payload: "خطة"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plan.pdf", finding.FileName)
	assert.Equal(t, "يدعم المعيار 6 بخطة مكتملة.", finding.Findings)

	require.Equal(t, 1, partial.callCount())
	parts := partial.calls[0]
	require.Len(t, parts, 3)
	assert.Equal(t, genai.Text("اسم الملف: plan.pdf"), parts[0])
	assert.Equal(t, genai.Text("خطة"), parts[1])
}

func TestScoringEngine_PartialImageIsInlineBlob(t *testing.T) {
	partial := &fakeGenerator{responses: []fakeResponse{{text: "صورة لسبورة تفاعلية."}}}
	engine, _ := newTestEngine(partial, &fakeGenerator{})

	data := []byte{1, 2, 3}
	_, err := engine.Partial(context.Background(), models.NormalizedEvidence{
		Name: "board.png", Kind: models.EvidenceImage, MIMEType: "image/png",
		Payload: base64.StdEncoding.EncodeToString(data),
	}, nil)
	require.NoError(t, err)

	blob, ok := partial.calls[0][1].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", blob.MIMEType)
	assert.Equal(t, data, blob.Data)
}

func TestScoringEngine_PartialRefusalNotRetried(t *testing.T) {
	partial := &fakeGenerator{responses: []fakeResponse{{text: "I am unable to help with that."}}}
	engine, delays := newTestEngine(partial, &fakeGenerator{})

	_, err := engine.Partial(context.Background(), models.NormalizedEvidence{Name: "x.pdf", Kind: models.EvidenceText, Payload: "x"}, nil)
	require.Error(t, err)
	assert.Empty(t, *delays)
	assert.Equal(t, 1, partial.callCount())
}

func TestScoringEngine_FinalRetriesNonJSON(t *testing.T) {
	final := &fakeGenerator{responses: []fakeResponse{
		{text: "<html>upstream timeout</html>"},
		{text: validFinalJSON},
	}}
	engine, delays := newTestEngine(&fakeGenerator{}, final)
	var retried []int

	result, err := engine.Final(context.Background(), "### الملف: a.pdf\nدليل", func(attempt int) { retried = append(retried, attempt) })
	require.NoError(t, err)
	assert.Equal(t, models.GradeVeryGood, result.Grade)
	assert.Equal(t, 2, final.callCount())
	assert.Equal(t, []time.Duration{5 * time.Second}, *delays)
	assert.Equal(t, []int{2}, retried)
}

func TestScoringEngine_FinalRateLimitedExhausts(t *testing.T) {
	quota := status.Error(codes.ResourceExhausted, "quota")
	final := &fakeGenerator{responses: []fakeResponse{{err: quota}, {err: quota}, {err: quota}}}
	engine, delays := newTestEngine(&fakeGenerator{}, final)

	_, err := engine.Final(context.Background(), "transcript", nil)
	assert.True(t, IsKind(err, KindRateLimitExceeded))
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *delays)
}

func TestScoringEngine_FinalSchemaViolationNotRetried(t *testing.T) {
	final := &fakeGenerator{responses: []fakeResponse{{text: `{"scores":{"1":5}}`}}}
	engine, delays := newTestEngine(&fakeGenerator{}, final)

	_, err := engine.Final(context.Background(), "transcript", nil)
	assert.True(t, IsKind(err, KindSchemaViolation))
	assert.Equal(t, 500, AsEvaluationError(err).Status())
	assert.Empty(t, *delays)
}

func TestScoringEngine_FinalDirectAttachesEveryFile(t *testing.T) {
	final := &fakeGenerator{responses: []fakeResponse{{text: validFinalJSON}}}
	engine, _ := newTestEngine(&fakeGenerator{}, final)

	evidence := []models.NormalizedEvidence{
		{Name: "a.pdf", Kind: models.EvidenceText, Payload: "نص"},
		{Name: "b.jpg", Kind: models.EvidenceImage, MIMEType: "image/jpeg", Payload: base64.StdEncoding.EncodeToString([]byte{9})},
		{Name: "c.jpg", Kind: models.EvidenceImage, MIMEType: "image/jpeg", Payload: "%%%not-base64"},
	}
	_, err := engine.FinalDirect(context.Background(), evidence, nil)
	require.NoError(t, err)

	// prompt + 2 parts for each decodable file
	assert.Len(t, final.calls[0], 5)
}
