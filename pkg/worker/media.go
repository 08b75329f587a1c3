package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mediagen/pkg/a2a"
	"github.com/theapemachine/mediagen/pkg/provider"
)

/*
generateSpec is what a media worker contributes to the shared
generation flow.
*/
type generateSpec struct {
	kind     string
	artifact string
	makePart func(url string) a2a.Part
}

/*
generate runs one backend job to completion, yielding progress along the
way.  It always ends the sequence with a terminal update unless the
consumer abandoned the channel.  The worker timeout only bounds backend
calls; ctx is the consumer's lifetime and gates every yield.
*/
func generate(
	ctx context.Context,
	job *Job,
	updates chan<- Update,
	backend provider.Generator,
	o options,
	req provider.JobRequest,
	spec generateSpec,
) {
	push(ctx, updates, StatusUpdate(
		a2a.TaskStateWorking,
		fmt.Sprintf("Submitting %s generation job...", spec.kind),
	))

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	jobID, err := backend.CreateJob(genCtx, req)

	if err != nil {
		push(ctx, updates, StatusUpdate(
			a2a.TaskStateFailed,
			fmt.Sprintf("%s generation failed: %s", titleCase(spec.kind), err),
		))
		return
	}

	log.Debug("generation job created", "task", job.Task.ID, "job", jobID, "kind", spec.kind)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	lastText := ""

	announce := func(text string) {
		if text == lastText {
			return
		}

		lastText = text
		push(ctx, updates, StatusUpdate(a2a.TaskStateWorking, text))
	}

	for {
		if job.Stopped() {
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateCancelled,
				"Task cancelled by request.",
			))
			return
		}

		status, err := backend.QueryJob(genCtx, jobID)

		if err != nil {
			if genCtx.Err() != nil {
				push(ctx, updates, StatusUpdate(
					a2a.TaskStateFailed,
					fmt.Sprintf("%s generation timed out after %s", titleCase(spec.kind), o.timeout),
				))
				return
			}

			push(ctx, updates, StatusUpdate(
				a2a.TaskStateFailed,
				fmt.Sprintf("%s generation failed: %s", titleCase(spec.kind), err),
			))
			return
		}

		switch status.State {
		case provider.JobFailed:
			reason := status.Error

			if reason == "" {
				reason = "backend reported failure"
			}

			push(ctx, updates, StatusUpdate(
				a2a.TaskStateFailed,
				fmt.Sprintf("%s generation failed: %s", titleCase(spec.kind), reason),
			))
			return

		case provider.JobSuccess:
			if len(status.ResultURLs) == 0 {
				push(ctx, updates, StatusUpdate(
					a2a.TaskStateFailed,
					fmt.Sprintf("%s generation failed: backend returned no asset", titleCase(spec.kind)),
				))
				return
			}

			push(ctx, updates, completedUpdate(ctx, job.Task, status.ResultURLs[0], o, spec))
			return

		case provider.JobWaiting:
			announce("Waiting in generation queue...")

		default:
			if status.Progress >= 0 {
				announce(fmt.Sprintf("Generating %s... %d%%", spec.kind, status.Progress))
			} else {
				announce(fmt.Sprintf("Generating %s...", spec.kind))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-genCtx.Done():
			push(ctx, updates, StatusUpdate(
				a2a.TaskStateFailed,
				fmt.Sprintf("%s generation timed out after %s", titleCase(spec.kind), o.timeout),
			))
			return
		case <-ticker.C:
		}
	}
}

/*
completedUpdate assembles the terminal update for a finished job: one
artifact whose first part is the asset URL and whose second part is the
metadata JSON document.
*/
func completedUpdate(
	ctx context.Context, task *a2a.Task, assetURL string, o options, spec generateSpec,
) Update {
	artifact := a2a.NewMediaArtifact(
		spec.artifact,
		task.Prompt,
		spec.makePart(assetURL),
		a2a.NewTextPart(o.metadata.Generate(ctx, task.Prompt, spec.kind)),
	)

	if mirrorURL := o.mirror.Upload(ctx, task.ID, assetURL); mirrorURL != "" {
		artifact.Metadata = map[string]any{"mirrorUrl": mirrorURL}
	}

	return Update{
		State:     a2a.TaskStateCompleted,
		Message:   a2a.NewTextMessage("agent", fmt.Sprintf("%s generated successfully.", titleCase(spec.kind))),
		Artifacts: []a2a.Artifact{artifact},
	}
}

func titleCase(kind string) string {
	if kind == "" {
		return kind
	}

	return strings.ToUpper(kind[:1]) + kind[1:]
}
