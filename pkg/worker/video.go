package worker

import (
	"context"
	"strings"
	"time"

	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
VideoWorker serves text2video tasks.  Video jobs animate one or more
reference images, so the task must carry imageUrls metadata on top of
its prompt.
*/
type VideoWorker struct {
	backend provider.Generator
	opts    options
}

func NewVideoWorker(backend provider.Generator, opts ...Option) *VideoWorker {
	return &VideoWorker{
		backend: backend,
		opts:    newOptions(300*time.Second, opts),
	}
}

func (worker *VideoWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 8)

	go func() {
		defer close(updates)

		prompt := strings.TrimSpace(job.Task.Prompt)

		if prompt == "" {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a prompt describing the video you want.",
			))
			return
		}

		if len(prompt) < 5 {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a more detailed prompt for the video.",
			))
			return
		}

		imageURLs := job.Task.ImageURLs()

		if len(imageURLs) == 0 {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateFailed,
				"Video generation requires at least one reference image URL in metadata.imageUrls.",
			))
			return
		}

		generate(ctx, job, updates, worker.backend, worker.opts, provider.JobRequest{
			TaskID:    job.Task.ID,
			Kind:      "video",
			Prompt:    prompt,
			Duration:  job.Task.Duration(),
			ImageURLs: imageURLs,
			Model:     job.Task.MetaString("model"),
		}, generateSpec{
			kind:     "video",
			artifact: "Generated Video",
			makePart: a2a.NewVideoPart,
		})
	}()

	return updates
}
