package models

import "time"

// ScoreSet maps criterion id (1..11) to a score in [1,5]. A zero or absent
// entry means the criterion has not been evaluated yet.
type ScoreSet map[int]int

// Evaluated reports whether criterion id carries a real score.
func (s ScoreSet) Evaluated(id int) bool {
	return s[id] > 0
}

// Grade is the qualitative band assigned from a total percentage.
type Grade string

const (
	GradeExcellent      Grade = "ممتاز / أداء رائد"
	GradeVeryGood       Grade = "جيد جداً / أداء قوي"
	GradeGood           Grade = "جيد / أداء مقبول"
	GradeSatisfactory   Grade = "مرضي / يحتاج تطوير"
	GradeUnsatisfactory Grade = "غير مرضي / ضعف حاد"
)

// EvaluationResult is the outcome of one full analysis run. A new run
// replaces any previous result for the same submission.
type EvaluationResult struct {
	Scores         ScoreSet  `json:"scores" firestore:"-"`
	Justifications []string  `json:"justifications" firestore:"justifications"`
	Strengths      []string  `json:"strengths" firestore:"strengths"`
	Weaknesses     []string  `json:"weaknesses" firestore:"weaknesses"`
	Recommendation string    `json:"recommendation" firestore:"recommendation"`
	TotalScore     float64   `json:"totalScore" firestore:"totalScore"`
	Grade          Grade     `json:"grade" firestore:"grade"`
	FileCount      int       `json:"fileCount" firestore:"fileCount"`
	EvaluatedAt    time.Time `json:"evaluatedAt" firestore:"evaluatedAt"`
}

// SubmissionStatus tracks a submission through review.
type SubmissionStatus string

const (
	StatusDraft     SubmissionStatus = "draft"
	StatusPending   SubmissionStatus = "pending"
	StatusEvaluated SubmissionStatus = "evaluated"
)

// Submission is a teacher's evidence submission as stored in Firestore.
type Submission struct {
	ID         string           `firestore:"-"`
	TeacherID  string           `firestore:"teacherId,omitempty"`
	FolderLink string           `firestore:"folderLink,omitempty"`
	Status     SubmissionStatus `firestore:"status,omitempty"`
	Progress   *Progress        `firestore:"progress,omitempty"`
	UpdatedAt  time.Time        `firestore:"updatedAt,omitempty"`
}

// EvaluationRecord is the single evaluation row kept per submission.
type EvaluationRecord struct {
	SubmissionID   string           `firestore:"submissionId"`
	TeacherID      string           `firestore:"teacherId,omitempty"`
	Scores         map[string]int   `firestore:"scores"`
	Result         EvaluationResult `firestore:"result"`
	WorkflowExecID string           `firestore:"workflowExecutionId,omitempty"`
}
