package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth admits requests carrying any of tokens as a bearer token. Blank
// tokens are ignored; with none left every request passes.
func BearerAuth(tokens ...string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && validToken([]byte(got), accepted) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="alumnirag"`)
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
		})
	}
}

func validToken(got []byte, accepted [][]byte) bool {
	match := 0
	for _, a := range accepted {
		match |= subtle.ConstantTimeCompare(got, a)
	}
	return match == 1
}
