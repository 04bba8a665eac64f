package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseguard/pkg/domain-errors"
)

// writeJSON centralizes success envelopes.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates domain errors to HTTP responses. Keeping it here
// ensures consistent JSON error envelopes across handlers.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := dErrors.CodeInternal

	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		status = dErrors.ToHTTPStatus(de.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}
