package token

import "errors"

var (
	// ErrTokenExpired means the signature was valid but the current time is at or past exp.
	// Callers should attempt a refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers bad signatures, wrong secrets, unexpected algorithms and payloads
	// that cannot be parsed. Callers should treat it as a hard failure.
	ErrTokenMalformed = errors.New("token malformed")
)
