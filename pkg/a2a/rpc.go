package a2a

import "github.com/theapemachine/mediagen/pkg/jsonrpc"

// JSON-RPC method names the service dispatches on.
const (
	MethodSendTask          = "tasks/send"
	MethodSendTaskSubscribe = "tasks/sendSubscribe"
)

// SendTaskResponse represents a response to a send task request
type SendTaskResponse struct {
	jsonrpc.Message
	Result *Task          `json:"result,omitempty"`
	Error  *jsonrpc.Error `json:"error,omitempty"`
}

/*
SubscribeResult is the body returned by tasks/sendSubscribe when the
caller asked for webhook delivery instead of an SSE stream.
*/
type SubscribeResult struct {
	TaskID string `json:"taskId"`
}

// SendTaskSubscribeResponse represents a response to a streaming task request
type SendTaskSubscribeResponse struct {
	jsonrpc.Message
	Result *SubscribeResult `json:"result,omitempty"`
	Error  *jsonrpc.Error   `json:"error,omitempty"`
}
