package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// ParticipantIDKey is the request-context key carrying the caller's pseudo.
const ParticipantIDKey = "participantID"

const participantHeader = "X-Participant-ID"

var pseudoRegex = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidPseudo reports whether s is an acceptable participant pseudo:
// non-empty, lowercase letters and digits only.
func ValidPseudo(s string) bool {
	return pseudoRegex.MatchString(s)
}

// ParticipantMiddleware extracts the participant pseudo from the
// X-Participant-ID header and adds it to the request context. Identity
// provisioning is an external concern; the engine only needs a stable,
// well-formed identifier per caller.
func ParticipantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pseudo := strings.ToLower(strings.TrimSpace(r.Header.Get(participantHeader)))
		if pseudo == "" {
			http.Error(w, "X-Participant-ID header required", http.StatusUnauthorized)
			return
		}
		if !ValidPseudo(pseudo) {
			http.Error(w, "Invalid participant identifier", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ParticipantIDKey, pseudo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
