package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func authTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// signToken подписывает тестовый токен HS256.
func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("ошибка подписи токена: %v", err)
	}
	return signed
}

// newAuthHandler возвращает handler за UploadAuth, записывающий subject.
func newAuthHandler(secret string, gotSubject *string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return UploadAuth(secret, authTestLogger())(next)
}

// TestUploadAuth_Disabled проверяет пропуск запросов при пустом секрете.
func TestUploadAuth_Disabled(t *testing.T) {
	var subject string
	handler := newAuthHandler("", &subject)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("статус: ожидалось 200, получено %d", rec.Code)
	}
}

// TestUploadAuth_MissingHeader проверяет 401 без заголовка Authorization.
func TestUploadAuth_MissingHeader(t *testing.T) {
	var subject string
	handler := newAuthHandler(testSecret, &subject)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: ожидалось 401, получено %d", rec.Code)
	}
}

// TestUploadAuth_ValidToken проверяет пропуск валидного токена
// и передачу subject через контекст.
func TestUploadAuth_ValidToken(t *testing.T) {
	var subject string
	handler := newAuthHandler(testSecret, &subject)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "ci-bot", time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: ожидалось 200, получено %d: %s", rec.Code, rec.Body.String())
	}
	if subject != "ci-bot" {
		t.Errorf("subject: ожидалось ci-bot, получено %q", subject)
	}
}

// TestUploadAuth_WrongSecret проверяет 401 для токена с чужой подписью.
func TestUploadAuth_WrongSecret(t *testing.T) {
	var subject string
	handler := newAuthHandler(testSecret, &subject)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "x", time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: ожидалось 401, получено %d", rec.Code)
	}
}

// TestUploadAuth_ExpiredToken проверяет 401 для просроченного токена.
func TestUploadAuth_ExpiredToken(t *testing.T) {
	var subject string
	handler := newAuthHandler(testSecret, &subject)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "x", time.Now().Add(-time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: ожидалось 401, получено %d", rec.Code)
	}
}

// TestUploadAuth_BadScheme проверяет 401 для схемы, отличной от Bearer.
func TestUploadAuth_BadScheme(t *testing.T) {
	var subject string
	handler := newAuthHandler(testSecret, &subject)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус: ожидалось 401, получено %d", rec.Code)
	}
}
