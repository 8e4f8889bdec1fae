package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// fakeProvider is an in-memory StorageProvider.
type fakeProvider struct {
	children []models.DriveFile
	listErr  error
	data     map[string][]byte
	failing  map[string]bool
}

func (p *fakeProvider) ListChildren(ctx context.Context, folderID string) ([]models.DriveFile, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.children, nil
}

func (p *fakeProvider) Download(ctx context.Context, file models.DriveFile) (*models.RawEvidenceFile, error) {
	if p.failing[file.ID] {
		return nil, errors.New("download exploded")
	}
	return &models.RawEvidenceFile{ID: file.ID, Name: file.Name, MIMEType: file.MIMEType, Data: p.data[file.ID]}, nil
}

// fakeGenerator returns scripted responses in order, one per call.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     [][]genai.Part
}

type fakeResponse struct {
	text string
	err  error
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, parts)
	if len(g.responses) == 0 {
		return nil, errors.New("fakeGenerator: no scripted response left")
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return textResponse(next.text), nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

const validFinalJSON = `{
  "scores": {"1": 5, "2": 4, "3": 4, "4": 3, "5": 5, "6": 4, "7": 4, "8": 5, "9": 5, "10": 3, "11": 4},
  "justifications": ["j1","j2","j3","j4","j5","j6","j7","j8","j9","j10","j11"],
  "strengths": ["خطط دروس مكتملة"],
  "weaknesses": ["تحليل النتائج محدود"],
  "recommendation": "التوسع في أدوات التقويم."
}`

// memBucket is an in-memory gcp.ObjectWriter.
type memBucket struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemBucket() *memBucket { return &memBucket{objects: map[string]string{}} }

func (b *memBucket) NewWriter(ctx context.Context, name string) io.WriteCloser {
	return &memWriter{bucket: b, name: name}
}

func (b *memBucket) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type memWriter struct {
	bucket *memBucket
	name   string
	buf    bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.bucket.mu.Lock()
	defer w.bucket.mu.Unlock()
	w.bucket.objects[w.name] = w.buf.String()
	return nil
}

// fakeStore is an in-memory SubmissionStore.
type fakeStore struct {
	mu          sync.Mutex
	submissions map[string]*models.Submission
	evaluations map[string]*models.EvaluationRecord
	progress    map[string][]models.Progress
	statuses    map[string][]models.SubmissionStatus
	saveErr     error
}

func newFakeStore(subs ...*models.Submission) *fakeStore {
	s := &fakeStore{
		submissions: map[string]*models.Submission{},
		evaluations: map[string]*models.EvaluationRecord{},
		progress:    map[string][]models.Progress{},
		statuses:    map[string][]models.SubmissionStatus{},
	}
	for _, sub := range subs {
		s.submissions[sub.ID] = sub
	}
	return s
}

func (s *fakeStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, newError(KindNotFound, "not found", errors.New(id))
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) SaveEvaluation(ctx context.Context, sub *models.Submission, result *models.EvaluationResult, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.evaluations[sub.ID] = &models.EvaluationRecord{
		SubmissionID:   sub.ID,
		TeacherID:      sub.TeacherID,
		Result:         *result,
		WorkflowExecID: executionID,
	}
	s.submissions[sub.ID].Status = models.StatusEvaluated
	return nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, st models.SubmissionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = append(s.statuses[id], st)
	if sub, ok := s.submissions[id]; ok {
		sub.Status = st
	}
	return nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, id string, p models.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[id] = append(s.progress[id], p)
	if sub, ok := s.submissions[id]; ok {
		snap := p
		sub.Progress = &snap
	}
	return nil
}
