package worker

import (
	"context"
	"strings"
	"time"

	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
ImageWorker serves text2image tasks through the generation backend.
*/
type ImageWorker struct {
	backend provider.Generator
	opts    options
}

func NewImageWorker(backend provider.Generator, opts ...Option) *ImageWorker {
	return &ImageWorker{
		backend: backend,
		opts:    newOptions(180*time.Second, opts),
	}
}

func (worker *ImageWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 8)

	go func() {
		defer close(updates)

		prompt := strings.TrimSpace(job.Task.Prompt)

		if prompt == "" {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a prompt describing the image you want.",
			))
			return
		}

		if len(prompt) < 5 {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a more detailed prompt for the image.",
			))
			return
		}

		generate(ctx, job, updates, worker.backend, worker.opts, provider.JobRequest{
			TaskID:         job.Task.ID,
			Kind:           "image",
			Prompt:         prompt,
			NegativePrompt: job.Task.MetaString("negativePrompt"),
			Style:          job.Task.MetaString("style"),
			Model:          job.Task.MetaString("model"),
		}, generateSpec{
			kind:     "image",
			artifact: "Generated Image",
			makePart: a2a.NewImagePart,
		})
	}()

	return updates
}
