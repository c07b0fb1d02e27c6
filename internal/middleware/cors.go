package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// AllowedHeaders are the request headers browsers may send cross-origin.
var AllowedHeaders = []string{
	"authorization",
	"x-client-info",
	"apikey",
	"content-type",
	"x-fingerprint",
	"x-source",
	"x-webhook-type",
	"x-execution-id",
}

var corsOptions = cors.Options{
	AllowedOrigins:       []string{"*"},
	AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders:       AllowedHeaders,
	ExposedHeaders:       []string{"X-Execution-Id", "X-Request-Id"},
	MaxAge:               300,
	OptionsSuccessStatus: http.StatusNoContent,
}

// CORS applies permissive CORS on every route, unknown ones included.
// Preflights get 204 before routing, and so does any other OPTIONS request.
func CORS(next http.Handler) http.Handler {
	return cors.Handler(corsOptions)(optionsNoContent(next))
}

func optionsNoContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
