// request_id.go — middleware, присваивающий каждому запросу UUID.
// Идентификатор кладётся в контекст и в заголовок X-Request-Id ответа,
// request logger добавляет его в каждую строку лога.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ctxKeyRequestID — ключ контекста для request id.
type ctxKeyRequestID struct{}

// RequestID возвращает middleware, генерирующий UUID запроса.
// Входящий X-Request-Id сохраняется, если он уже задан (прокси, gateway).
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				reqID = uuid.New().String()
			}

			w.Header().Set("X-Request-Id", reqID)
			ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает request id из контекста
// или пустую строку, если middleware не применялся.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return id
	}
	return ""
}
