package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader - заголовок сквозного идентификатора запроса
const RequestIDHeader = "X-Request-Id"

// RequestID пробрасывает входящий X-Request-Id или генерирует новый
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r.Header.Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}
