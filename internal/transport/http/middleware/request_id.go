package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const HeaderRequestID = "X-Request-ID"

// EchoRequestID возвращает клиенту id запроса, выданный chi RequestID (или пришедший от gateway).
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(HeaderRequestID, id)
		}
		next.ServeHTTP(w, r)
	})
}
