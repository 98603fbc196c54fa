package security

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidSubject  = errors.New("invalid subject")
)
