package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/types"
)

var errEmptyBody = errors.New("empty body")

// decode reads a JSON or protobuf Struct request body into dst.
func decode(r *http.Request, dst any) error {
	if isProtobuf(r) {
		var s structpb.Struct
		if err := readProto(r, &s); err != nil {
			return err
		}
		return structFromProto(&s, dst)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respond writes v as protobuf when the client asked for it and as JSON
// otherwise.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsProtobuf(r) {
		msg, err := structToProto(v)
		if err != nil {
			http.Error(w, "proto encode error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, msg)
		return
	}
	writeJSON(w, status, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respond(w, r, status, types.ErrorResponse{OK: false, Error: code, Message: msg})
}

// writeServiceError maps an apperr code to its HTTP status.  Unclassified
// errors are logged and reported as internal errors.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown {
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if code == apperr.CodeStorageUnavailable {
		s.logger.Printf("%s error: %v", op, err)
	}
	writeError(w, r, code.HTTPStatus(), code.Slug(), err.Error())
}

func writeBadBody(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
}
