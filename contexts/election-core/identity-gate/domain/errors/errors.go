package errors

import "errors"

var (
	ErrInvalidIdentifier = errors.New("invalid identifier format")
	ErrChallengeNotFound = errors.New("no pending challenge for identifier")
	ErrChallengeExpired  = errors.New("challenge has expired")
	ErrCodeMismatch      = errors.New("verification code does not match")
	ErrTokenNotFound     = errors.New("auth token not found")
	ErrTokenExpired      = errors.New("auth token has expired")
)
