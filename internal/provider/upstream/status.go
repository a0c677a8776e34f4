package upstream

import (
	"context"
	"errors"
	"fmt"
)

// Outcome はプロバイダ呼び出し結果の分類。メトリクスのラベルにも使う。
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeEmpty    Outcome = "empty"
	OutcomeNotFound Outcome = "not_found"
	OutcomeRejected Outcome = "rejected"
	OutcomeBackoff  Outcome = "backoff"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// ClassifyHTTPStatus はHTTPステータスコードを呼び出し結果に分類する。
func ClassifyHTTPStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeOK
	case statusCode == 404 || statusCode == 410:
		return OutcomeNotFound
	case statusCode == 401 || statusCode == 403:
		return OutcomeRejected
	case statusCode == 429:
		return OutcomeBackoff
	case statusCode >= 500:
		return OutcomeBackoff
	default:
		return OutcomeError
	}
}

// StatusError はプロバイダが2xx以外のステータスを返したことを表す。
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// Classify はプロバイダ呼び出しのエラーを分類する。nilはOutcomeOK。
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyHTTPStatus(se.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	return OutcomeError
}
