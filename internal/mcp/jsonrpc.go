package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSON-RPC error codes
const (
	ErrorCodeParseError     = -32700
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

const jsonrpcVersion = "2.0"

// Request is one decoded input line. ID is kept raw so it is echoed with
// its original JSON type.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error. A nil ID encodes as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func invalidParams(format string, args ...any) *RPCError {
	return newRPCError(ErrorCodeInvalidParams, fmt.Sprintf(format, args...))
}

// internalError carries an engine failure's display text
func internalError(err error) *RPCError {
	return newRPCError(ErrorCodeInternalError, err.Error())
}

var (
	errMissingParams  = newRPCError(ErrorCodeInvalidParams, "Missing params")
	errMissingURI     = newRPCError(ErrorCodeInvalidParams, "Missing uri parameter")
	errMissingSymbol  = newRPCError(ErrorCodeInvalidParams, "Missing symbol id")
	errNotInitialized = newRPCError(ErrorCodeInternalError, "ADI not initialized")
)

// wireRequest tells an absent method apart from an empty one
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// DecodeRequest parses one line. A line without a method is malformed; an
// empty method is routed like any other unknown method.
func DecodeRequest(line []byte) (*Request, error) {
	var wire wireRequest
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, err
	}
	if wire.Method == nil {
		return nil, fmt.Errorf("missing field `method`")
	}
	return &Request{
		JSONRPC: wire.JSONRPC,
		ID:      wire.ID,
		Method:  *wire.Method,
		Params:  wire.Params,
	}, nil
}

func parseErrorResponse(err error) *Response {
	return &Response{
		JSONRPC: jsonrpcVersion,
		Error:   newRPCError(ErrorCodeParseError, "Parse error: "+err.Error()),
	}
}

// object is a permissively read JSON object. Lookups of missing keys or
// values of the wrong type report absence instead of failing.
type object map[string]json.RawMessage

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// requireParams returns the params object, or errMissingParams when the
// request has none. Params that are not an object read as empty.
func requireParams(raw json.RawMessage) (object, *RPCError) {
	if isAbsent(raw) {
		return nil, errMissingParams
	}
	return asObject(raw), nil
}

func asObject(raw json.RawMessage) object {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return object{}
	}
	return obj
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) str(key string) (string, bool) {
	var s string
	raw, ok := o[key]
	if !ok || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

func (o object) strOr(key, def string) string {
	if s, ok := o.str(key); ok {
		return s
	}
	return def
}

// uintOr reads a non-negative integer; floats and negatives fall back to def
func (o object) uintOr(key string, def uint64) uint64 {
	raw, ok := o[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (o object) int64(key string) (int64, bool) {
	raw, ok := o[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (o object) object(key string) object {
	raw, ok := o[key]
	if !ok {
		return object{}
	}
	return asObject(raw)
}
