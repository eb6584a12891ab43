package api

import (
	"fmt"
	"net/http"
)

// httpError writes the JSON error envelope {"error":{"message","type"}}.
func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
