package a2a

import "time"

/*
TaskState enumerates the mutually-exclusive states a task may be in.  A
task starts out as "submitted" and ends in exactly one terminal state.
*/
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateInputReq  TaskState = "input-required"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

/*
Terminal reports whether a task in this state will never transition again.
*/
func (state TaskState) Terminal() bool {
	switch state {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	}

	return false
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func NewStatus(state TaskState, message *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

/*
Text returns the first text part of the status message, or the empty
string when the status carries no message.
*/
func (status TaskStatus) Text() string {
	return status.Message.FirstText()
}
