package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
)

// HeaderCorrelationID carries the id that ties a request to its log lines and
// the events it publishes.
const HeaderCorrelationID = "X-Correlation-ID"

var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// CorrelationID reads X-Correlation-ID, generating a UUID when it is absent
// or malformed, stores it in the request context and echoes it back.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if !correlationIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, id)
		ctx := logging.ContextWithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
