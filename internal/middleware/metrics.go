package middleware

import "net/http"

// StatusRecorder はHTTPレスポンスのステータスコードを集計する。
type StatusRecorder interface {
	RecordHTTPStatus(code int)
}

// NewStatusMetricsMiddleware はレスポンスのステータスコードをrecorderに記録するミドルウェアを返す。
func NewStatusMetricsMiddleware(recorder StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			recorder.RecordHTTPStatus(rec.statusCode)
		})
	}
}
