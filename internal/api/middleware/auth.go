// auth.go — проверка bearer-токена на upload endpoint.
// Токен — JWT, подписанный HS256 общим секретом (CH_UPLOAD_JWT_SECRET).
// Пустой секрет отключает проверку: сервис работает как открытый хостинг.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/confighost/internal/api/errors"
)

// ctxKeySubject — ключ контекста для subject токена.
type ctxKeySubject struct{}

// UploadAuth возвращает middleware, проверяющий JWT в заголовке
// Authorization: Bearer. Subject токена кладётся в контекст запроса.
func UploadAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверка отключена
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Требуется заголовок Authorization")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				apierrors.Unauthorized(w, "Ожидается схема Bearer")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logger.Warn("Отклонён невалидный upload-токен",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", fmt.Sprintf("%v", err)),
				)
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, _ := token.Claims.GetSubject()
			ctx := context.WithValue(r.Context(), ctxKeySubject{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext возвращает subject JWT из контекста
// или пустую строку, если аутентификация не выполнялась.
func SubjectFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(ctxKeySubject{}).(string); ok {
		return sub
	}
	return ""
}
