package connection

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"looped/infrastructure"
)

// StatusError converts a domain error into a gRPC status, using the same
// classification the REST handlers use.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, infrastructure.ErrRequestInFlight) {
		return status.Error(codes.Aborted, err.Error())
	}

	var code codes.Code
	switch infrastructure.StatusFor(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = codes.InvalidArgument
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusConflict:
		code = codes.AlreadyExists
	case http.StatusRequestEntityTooLarge:
		code = codes.ResourceExhausted
	case http.StatusNotImplemented:
		code = codes.Unimplemented
	case http.StatusServiceUnavailable:
		code = codes.Unavailable
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
