package models

// RunState is a stage of the evaluation pipeline.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateScanning   RunState = "scanning"
	StateScoring    RunState = "scoring"
	StateFinalizing RunState = "finalizing"
	StateComplete   RunState = "complete"
	StateFailed     RunState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Progress is the caller-visible snapshot of a running evaluation.
type Progress struct {
	State   RunState `json:"state" firestore:"state"`
	Current int      `json:"current" firestore:"current"`
	Total   int      `json:"total" firestore:"total"`
	Message string   `json:"message" firestore:"message"`
}
