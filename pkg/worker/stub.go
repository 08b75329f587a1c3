package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/theapemachine/mediagen/pkg/a2a"
)

/*
DemoWorker yields a canned generation sequence without touching any
backend.  It backs DEMO_MODE deployments and local development.
*/
type DemoWorker struct {
	kind  string
	delay time.Duration
}

func NewDemoWorker(kind string, delay time.Duration) *DemoWorker {
	return &DemoWorker{kind: kind, delay: delay}
}

func (worker *DemoWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 8)

	go func() {
		defer close(updates)

		for _, percent := range []int{10, 40, 70} {
			if job.Stopped() {
				push(ctx, updates, StatusUpdate(
					a2a.TaskStateCancelled,
					"Task cancelled by request.",
				))
				return
			}

			if !push(ctx, updates, StatusUpdate(
				a2a.TaskStateWorking,
				fmt.Sprintf("Generating %s... %d%%", worker.kind, percent),
			)) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(worker.delay):
			}
		}

		if job.Stopped() {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateCancelled,
				"Task cancelled by request.",
			))
			return
		}

		url := fmt.Sprintf("https://demo.mediagen.dev/%s/%s%s", worker.kind, job.Task.ID, demoExt(worker.kind))

		artifact := a2a.NewMediaArtifact(
			"Demo "+titleCase(worker.kind),
			job.Task.Prompt,
			demoPart(worker.kind, url),
			a2a.NewTextPart(fmt.Sprintf(`{"title":"Demo %s","description":"Demo mode asset.","tags":["%s","demo"]}`, worker.kind, worker.kind)),
		)

		push(ctx, updates, Update{
			State:     a2a.TaskStateCompleted,
			Message:   a2a.NewTextMessage("agent", titleCase(worker.kind)+" generated successfully."),
			Artifacts: []a2a.Artifact{artifact},
		})
	}()

	return updates
}

func demoExt(kind string) string {
	switch kind {
	case "video":
		return ".mp4"
	case "audio":
		return ".mp3"
	default:
		return ".png"
	}
}

func demoPart(kind string, url string) a2a.Part {
	switch kind {
	case "video":
		return a2a.NewVideoPart(url)
	case "audio":
		return a2a.NewAudioPart(url)
	default:
		return a2a.NewImagePart(url)
	}
}

/*
FailingWorker yields one working update and then fails.  It exists so
retry behavior can be exercised without a flaky backend.
*/
type FailingWorker struct {
	Reason string
}

func (worker *FailingWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 2)

	go func() {
		defer close(updates)

		push(ctx, updates, StatusUpdate(a2a.TaskStateWorking, "Attempting generation..."))
		push(ctx, updates, StatusUpdate(a2a.TaskStateFailed, worker.Reason))
	}()

	return updates
}

/*
IncompleteWorker ends its sequence without a terminal update, which is
a worker bug the processor has to surface.
*/
type IncompleteWorker struct{}

func (worker *IncompleteWorker) Handle(ctx context.Context, job *Job) <-chan Update {
	updates := make(chan Update, 2)

	go func() {
		defer close(updates)

		push(ctx, updates, StatusUpdate(a2a.TaskStateWorking, "Starting up..."))
	}()

	return updates
}
