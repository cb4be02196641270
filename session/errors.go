package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
)

var (
	// ErrNotAuthenticated means there is no stored session to use or refresh.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionEnded means a logout superseded the operation while it was in flight.
	ErrSessionEnded = errors.New("session ended")
)

// APIError is a non-2xx response from the auth server.
type APIError struct {
	StatusCode int
	Kind       apperrors.Kind
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("auth server returned %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	body := struct {
		Error string         `json:"error"`
		Kind  apperrors.Kind `json:"kind"`
	}{}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	return &APIError{StatusCode: resp.StatusCode, Kind: body.Kind, Message: body.Error}
}
