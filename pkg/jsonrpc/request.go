package jsonrpc

import "encoding/json"

/*
Request is a JSON-RPC 2.0 request envelope. Params stays raw so each
method handler can unmarshal it into its own parameter type.
*/
type Request struct {
	Message
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}
