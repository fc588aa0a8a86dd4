package response

import (
	"encoding/json"
	"net/http"
)

// WriteError serializes the Error as JSON with its StatusCode
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	writeJSON(w, e.StatusCode, e)
}

// WriteResponse serializes the result as JSON with status 200
func WriteResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
