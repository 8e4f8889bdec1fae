package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

// trimFences strips a markdown code fence the model sometimes wraps
// around JSON.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
	"لا أستطيع المساعدة",
}

// isRefusal reports whether a model reply is a refusal rather than content.
func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// decodeJSONBody checks that body is JSON and not an error envelope. A body
// that is not JSON at all is transient; an error envelope is classified by
// its own code.
func decodeJSONBody(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return transientError(fmt.Errorf("%w: %s", errNotJSON, snippet(string(trimmed))))
	}
	if evalErr, ok := decodeErrorPayload(trimmed); ok {
		return evalErr
	}
	return nil
}

// decodeErrorPayload recognises both our own ErrorResponse shape
// ({"error": kind, "message", "status": int}) and the Google API envelope
// ({"error": {"code", "message", "status"}}).
func decodeErrorPayload(body []byte) (*EvaluationError, bool) {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Status  json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 || string(envelope.Error) == "null" {
		return nil, false
	}

	var kind string
	if err := json.Unmarshal(envelope.Error, &kind); err == nil {
		evalErr := &EvaluationError{Kind: ErrorKind(kind), Message: envelope.Message, Err: errors.New(envelope.Message)}
		if evalErr.Kind == "" {
			evalErr.Kind = KindInternal
		}
		return evalErr, true
	}

	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(envelope.Error, &apiErr); err != nil {
		return internalError(fmt.Errorf("unreadable error payload: %s", snippet(string(envelope.Error)))), true
	}
	cause := fmt.Errorf("provider error %d %s: %s", apiErr.Code, apiErr.Status, apiErr.Message)
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		return rateLimitedError(cause), true
	}
	if apiErr.Status == "UNAVAILABLE" {
		return transientError(cause), true
	}
	return classifyStatus(apiErr.Code, cause), true
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
