package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"caseview/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a unique id, honoring one supplied by
// an upstream proxy, and echoes it back in the response header. It also
// stamps the request arrival time so everything in one request shares a
// single clock reading.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
