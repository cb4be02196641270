package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[writeJSON] failed to encode response")
	}
}

// writeJSONError translates err into its status code and client safe message. Untyped errors are
// logged and surfaced as a generic 500.
func writeJSONError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("[writeJSONError] internal error")
	}
	writeJSON(w, status, errorResponse{
		Error: apperrors.Message(err),
		Kind:  string(apperrors.KindOf(err)),
	})
}
