package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForMedia routes clip download paths around the wrapped
// compression middleware. MP4 payloads are already compressed; gzipping
// them wastes CPU and buffers the stream.
func SkipCompressionForMedia(compress func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compress(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/outputs/") || strings.HasPrefix(r.URL.Path, "/exports/") {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
