package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  A capture carrying a 512-dimension embedding encodes to about
// 10 KiB in JSON.
const maxRequestBody = 64 << 10

const protobufContentType = "application/x-protobuf"

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// wantsProtobuf reports whether the response should be protobuf encoded.
func wantsProtobuf(r *http.Request) bool {
	return isProtobuf(r) || strings.Contains(r.Header.Get("Accept"), protobufContentType)
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// structFromProto copies the fields of a google.protobuf.Struct body into
// dst using the same field names as the JSON form.
func structFromProto(s *structpb.Struct, dst any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// structToProto converts a JSON-tagged response into a
// google.protobuf.Struct.
func structToProto(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
