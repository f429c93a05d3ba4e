package api

import (
	"encoding/json"
	"net/http"
	"time"

	"groundtransfer/opsdesk/internal/models/dtos/responses"
)

func respondWithSuccess[T any](w http.ResponseWriter, statusCode int, data *T) {
	resp := responses.APIResponse[T]{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	writeJSON(w, statusCode, resp)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	resp := responses.APIResponse[any]{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
	}

	writeJSON(w, statusCode, resp)
}

// respondWithErrorData reports a failure that still produced a partial result
func respondWithErrorData[T any](w http.ResponseWriter, statusCode int, message string, data *T) {
	resp := responses.APIResponse[T]{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
		Data:      data,
	}

	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
