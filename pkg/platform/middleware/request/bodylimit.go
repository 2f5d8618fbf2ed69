package request

import (
	"net/http"
)

// DefaultMaxBodyBytes covers every claim and companion request with headroom.
const DefaultMaxBodyBytes int64 = 16 << 10

// BodyLimit caps request bodies with http.MaxBytesReader.
// Decoding an oversized body fails, which handlers surface as a 400.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
