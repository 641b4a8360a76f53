package infrastructure

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrProfileExists    = errors.New("profile already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInternalServer   = errors.New("internal server error")
	ErrNotImplemented   = errors.New("not implemented")
	ErrConflict         = errors.New("row already exists")
	ErrUnknownTable     = errors.New("unknown table")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrBackendClosed    = errors.New("backend closed")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
	ErrRequestNotFound  = errors.New("follow request not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrRequestInFlight  = errors.New("another change to this user is in progress")
	ErrPayloadTooLarge  = errors.New("request body too large")

	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)
