package jsonrpc

/*
Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
Error should be populated.
*/
type Response struct {
	Message
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}
