package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// JSONCodec lets connect handlers exchange plain Go structs as JSON. The
// built-in json codec only accepts generated protobuf messages.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

// Name is registered for the application/json and application/connect+json content types.
func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		// connect sends an empty body for messages with no fields
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}

// HandlerOptions returns the options every service handler is built with.
func HandlerOptions(extra ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, extra...)
}

// Procedure builds a connect procedure path such as /focusflow.session.v1.SessionService/Create.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

// ErrorCode pairs a sentinel error with the connect code it is reported as
type ErrorCode struct {
	Err  error
	Code connect.Code
}

// CodeFor maps err onto the code of the first matching sentinel.
// Unmatched errors become CodeInternal.
func CodeFor(err error, mapping ...ErrorCode) connect.Code {
	for _, m := range mapping {
		if errors.Is(err, m.Err) {
			return m.Code
		}
	}
	return connect.CodeInternal
}
