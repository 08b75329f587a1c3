package worker

import (
	"context"
	"time"

	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
Job carries what a worker needs for one attempt at a task: the task
itself and a probe that reports whether cancellation was requested.
*/
type Job struct {
	Task      *a2a.Task
	Cancelled func() bool
}

/*
Stopped reports whether the job should wind down.  A nil probe means
cancellation was never wired up and the job runs to completion.
*/
func (job *Job) Stopped() bool {
	return job.Cancelled != nil && job.Cancelled()
}

/*
Update is one yield in a worker's sequence.  A terminal state ends the
sequence; artifacts ride along the update that produced them.
*/
type Update struct {
	State     a2a.TaskState
	Message   *a2a.Message
	Artifacts []a2a.Artifact
}

/*
StatusUpdate builds a plain status yield with an agent-authored message.
*/
func StatusUpdate(state a2a.TaskState, text string) Update {
	return Update{
		State:   state,
		Message: a2a.NewTextMessage("agent", text),
	}
}

/*
Worker turns a task into a finite sequence of status updates.  The
worker closes the returned channel when the sequence ends, and checks
Job.Stopped between yields so a cancellation request ends the sequence
with a cancelled update.
*/
type Worker interface {
	Handle(ctx context.Context, job *Job) <-chan Update
}

/*
push delivers one update unless the consumer has gone away.
*/
func push(ctx context.Context, updates chan<- Update, update Update) bool {
	select {
	case updates <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

/*
options are the knobs shared by the media workers.
*/
type options struct {
	timeout  time.Duration
	interval time.Duration
	metadata *provider.MetadataClient
	mirror   *provider.Mirror
}

type Option func(*options)

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

/*
WithPollInterval sets how often the backend job is queried.
*/
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.interval = interval
	}
}

func WithMetadata(metadata *provider.MetadataClient) Option {
	return func(o *options) {
		o.metadata = metadata
	}
}

func WithMirror(mirror *provider.Mirror) Option {
	return func(o *options) {
		o.mirror = mirror
	}
}

func newOptions(timeout time.Duration, opts []Option) options {
	o := options{
		timeout:  timeout,
		interval: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
