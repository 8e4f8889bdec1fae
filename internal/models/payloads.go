package models

// These structs define the JSON payloads for HTTP requests and responses
// between the portal, the Cloud Workflow and the evaluation functions.

// ScanFolderRequest is the input for the folder-scanner function.
type ScanFolderRequest struct {
	Link string `json:"link"`
}

// ScanFolderResponse lists the eligible evidence files in a folder.
type ScanFolderResponse struct {
	FolderID string      `json:"folderId"`
	Files    []DriveFile `json:"files"`
}

// AnalysisMode selects between the two-pass and single-shot pipelines.
type AnalysisMode string

const (
	ModePartial AnalysisMode = "partial"
	ModeDirect  AnalysisMode = "direct"
)

// AnalyzeRequest is the input for the evidence-analyzer function. Either
// Link or SubmissionID must be set; SubmissionID wins when both are.
type AnalyzeRequest struct {
	Link         string       `json:"link,omitempty"`
	SubmissionID string       `json:"submissionId,omitempty"`
	Mode         AnalysisMode `json:"mode,omitempty"`
	ExecutionID  string       `json:"executionId,omitempty"`
}

// AnalyzeResponse is the output of the evidence-analyzer function.
type AnalyzeResponse struct {
	Status       string            `json:"status"`
	SubmissionID string            `json:"submissionId,omitempty"`
	Result       *EvaluationResult `json:"result"`
	Progress     Progress          `json:"progress"`
}

// ErrorResponse is the machine-readable error body every function returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// SubmissionEvent is the CloudEvent data that asks for a submission to be
// evaluated.
type SubmissionEvent struct {
	SubmissionID string       `json:"submissionId"`
	Mode         AnalysisMode `json:"mode,omitempty"`
}
