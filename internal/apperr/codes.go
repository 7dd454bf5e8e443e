package apperr

import (
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Input and lookup failures
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeUnknownSubject Code = "UNKNOWN_SUBJECT"
	CodeUnknownActor   Code = "UNKNOWN_ACTOR"

	// Presence state machine
	CodeWrongGroup     Code = "WRONG_GROUP"
	CodeAlreadyOnBoard Code = "ALREADY_ON_BOARD"
	CodeNotOnBoard     Code = "NOT_ON_BOARD"

	// Collaborators
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps a code to the status used by the HTTP layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnknownSubject, CodeUnknownActor:
		return http.StatusNotFound
	case CodeWrongGroup:
		return http.StatusForbidden
	case CodeAlreadyOnBoard, CodeNotOnBoard:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps a code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidInput:
		return codes.InvalidArgument
	case CodeUnknownSubject, CodeUnknownActor:
		return codes.NotFound
	case CodeWrongGroup:
		return codes.PermissionDenied
	case CodeAlreadyOnBoard, CodeNotOnBoard:
		return codes.FailedPrecondition
	case CodeStorageUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Slug is the lower-case form used in JSON error bodies.
func (c Code) Slug() string {
	return strings.ToLower(string(c))
}
