package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// SubmissionStore is the persistence the pipeline reads links from and
// writes results back to.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	// SaveEvaluation replaces the submission's single evaluation record and
	// marks the submission evaluated.
	SaveEvaluation(ctx context.Context, sub *models.Submission, result *models.EvaluationResult, executionID string) error
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error
	UpdateProgress(ctx context.Context, id string, progress models.Progress) error
}

// FirestoreStore implements SubmissionStore. Evaluations are keyed by
// submission id so there is at most one per submission.
type FirestoreStore struct {
	client      *firestore.Client
	submissions string
	evaluations string
}

// NewFirestoreStore creates a store over the named collections.
func NewFirestoreStore(client *firestore.Client, submissions, evaluations string) *FirestoreStore {
	if submissions == "" {
		submissions = "submissions"
	}
	if evaluations == "" {
		evaluations = "evaluations"
	}
	return &FirestoreStore{client: client, submissions: submissions, evaluations: evaluations}
}

func (s *FirestoreStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	snap, err := s.client.Collection(s.submissions).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, newError(KindNotFound, "لم يتم العثور على الملف المطلوب تقييمه.", err)
		}
		return nil, fmt.Errorf("failed to read submission %s: %w", id, err)
	}
	var sub models.Submission
	if err := snap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	sub.ID = snap.Ref.ID
	return &sub, nil
}

func (s *FirestoreStore) SaveEvaluation(ctx context.Context, sub *models.Submission, result *models.EvaluationResult, executionID string) error {
	record := models.EvaluationRecord{
		SubmissionID:   sub.ID,
		TeacherID:      sub.TeacherID,
		Scores:         stringKeyed(result.Scores),
		Result:         *result,
		WorkflowExecID: executionID,
	}
	subRef := s.client.Collection(s.submissions).Doc(sub.ID)
	evalRef := s.client.Collection(s.evaluations).Doc(sub.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(evalRef, record); err != nil {
			return err
		}
		return tx.Update(subRef, []firestore.Update{
			{Path: "status", Value: string(models.StatusEvaluated)},
			{Path: "progress", Value: models.Progress{State: models.StateComplete, Current: result.FileCount, Total: result.FileCount}},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save evaluation for %s: %w", sub.ID, err)
	}
	return nil
}

func (s *FirestoreStore) UpdateStatus(ctx context.Context, id string, st models.SubmissionStatus) error {
	_, err := s.client.Collection(s.submissions).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) UpdateProgress(ctx context.Context, id string, progress models.Progress) error {
	_, err := s.client.Collection(s.submissions).Doc(id).Update(ctx, []firestore.Update{
		{Path: "progress", Value: progress},
	})
	if err != nil {
		return fmt.Errorf("failed to update progress of %s: %w", id, err)
	}
	return nil
}

// stringKeyed converts a ScoreSet for storage; Firestore map keys must be
// strings.
func stringKeyed(scores models.ScoreSet) map[string]int {
	out := make(map[string]int, len(scores))
	for id, v := range scores {
		out[strconv.Itoa(id)] = v
	}
	return out
}
