package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationHeader - заголовок со сквозным идентификатором запроса
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationIDLen = 128

type requestInfoKey struct{}

// RequestInfo describes the in-flight request for log enrichment
type RequestInfo struct {
	CorrelationID string
	URL           string
}

// RequestInfoFromContext returns what CorrelationMiddleware stored in ctx
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// CorrelationMiddleware принимает X-Correlation-ID от клиента или генерирует новый,
// возвращает его в ответе и кладет в контекст запроса
func CorrelationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" || len(id) > maxCorrelationIDLen {
				id = uuid.NewString()
			}

			w.Header().Set(CorrelationHeader, id)

			ctx := context.WithValue(r.Context(), requestInfoKey{}, RequestInfo{
				CorrelationID: id,
				URL:           r.URL.Path,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
