package worker

import (
	"context"
	"strings"
	"time"

	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
AudioWorker serves text2audio tasks.  Audio prompts need more substance
than a few words, so the gate is stricter than for images.
*/
type AudioWorker struct {
	backend provider.Generator
	opts    options
}

func NewAudioWorker(backend provider.Generator, opts ...Option) *AudioWorker {
	return &AudioWorker{
		backend: backend,
		opts:    newOptions(300*time.Second, opts),
	}
}

func (worker *AudioWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 8)

	go func() {
		defer close(updates)

		prompt := strings.TrimSpace(job.Task.Prompt)

		if prompt == "" {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a prompt describing the audio you want.",
			))
			return
		}

		if len(prompt) < 10 {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateInputReq,
				"Please provide a more detailed prompt for the audio.",
			))
			return
		}

		generate(ctx, job, updates, worker.backend, worker.opts, provider.JobRequest{
			TaskID:   job.Task.ID,
			Kind:     "audio",
			Prompt:   prompt,
			Style:    job.Task.MetaString("style"),
			Duration: job.Task.Duration(),
			Model:    job.Task.MetaString("model"),
		}, generateSpec{
			kind:     "audio",
			artifact: "Generated Audio",
			makePart: a2a.NewAudioPart,
		})
	}()

	return updates
}
