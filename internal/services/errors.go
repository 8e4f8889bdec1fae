package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a pipeline failure for callers and the retry
// controller.
type ErrorKind string

const (
	KindBadRequest        ErrorKind = "bad_request"
	KindInvalidLink       ErrorKind = "invalid_link"
	KindAccess            ErrorKind = "access_denied"
	KindEmptyFolder       ErrorKind = "empty_folder"
	KindSchemaViolation   ErrorKind = "schema_violation"
	KindRateLimited       ErrorKind = "rate_limited"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindTransient         ErrorKind = "transient"
	KindNotFound          ErrorKind = "not_found"
	KindInternal          ErrorKind = "internal"
)

// EvaluationError is the only error kind that leaves the pipeline. Message
// is safe to show to a user; Err carries the provider's diagnostics.
type EvaluationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Status maps the kind to its HTTP status class.
func (e *EvaluationError) Status() int {
	switch e.Kind {
	case KindBadRequest, KindInvalidLink:
		return http.StatusBadRequest
	case KindAccess:
		return http.StatusForbidden
	case KindEmptyFolder, KindNotFound:
		return http.StatusNotFound
	case KindRateLimited, KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the retry controller may try again.
func (e *EvaluationError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

func newError(kind ErrorKind, message string, err error) *EvaluationError {
	return &EvaluationError{Kind: kind, Message: message, Err: err}
}

func badRequestError(err error) *EvaluationError {
	return newError(KindBadRequest, "الطلب غير مكتمل أو بصيغة غير صحيحة.", err)
}

func invalidLinkError(err error) *EvaluationError {
	return newError(KindInvalidLink, "رابط المجلد غير صالح. تأكد من نسخ رابط مجلد Google Drive كاملاً.", err)
}

func accessError(err error) *EvaluationError {
	return newError(KindAccess, "تعذر الوصول إلى المجلد. تأكد من مشاركة المجلد مع حساب الخدمة أو جعله متاحاً لمن لديه الرابط.", err)
}

func emptyFolderError() *EvaluationError {
	return newError(KindEmptyFolder, "لا توجد ملفات مدعومة (PDF أو صور) في المجلد.", nil)
}

func schemaViolationError(err error) *EvaluationError {
	return newError(KindSchemaViolation, "أعاد نموذج التقييم استجابة غير مكتملة. أعد المحاولة لاحقاً.", err)
}

func rateLimitedError(err error) *EvaluationError {
	return newError(KindRateLimited, "تم تجاوز حد الطلبات لنموذج التقييم.", err)
}

func rateLimitExceededError(err error) *EvaluationError {
	return newError(KindRateLimitExceeded, "الخدمة مشغولة حالياً. انتظر دقيقة ثم أعد المحاولة.", err)
}

func transientError(err error) *EvaluationError {
	return newError(KindTransient, "حدث خطأ تقني مؤقت أثناء الاتصال بنموذج التقييم.", err)
}

func internalError(err error) *EvaluationError {
	return newError(KindInternal, "حدث خطأ داخلي أثناء التقييم.", err)
}

// AsEvaluationError returns err as an *EvaluationError, wrapping anything
// unclassified as internal.
func AsEvaluationError(err error) *EvaluationError {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	return internalError(err)
}

// IsKind reports whether err is an EvaluationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr) && evalErr.Kind == kind
}
