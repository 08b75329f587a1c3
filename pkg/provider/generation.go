package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	fiberClient "github.com/gofiber/fiber/v3/client"
)

/*
JobState mirrors the lifecycle the generation backend reports for a
submitted job.
*/
type JobState string

const (
	JobWaiting    JobState = "waiting"
	JobProcessing JobState = "processing"
	JobSuccess    JobState = "success"
	JobFailed     JobState = "failed"
)

/*
JobRequest carries everything the backend needs to start one generation
job.
*/
type JobRequest struct {
	TaskID         string   `json:"taskId"`
	Kind           string   `json:"kind"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negativePrompt,omitempty"`
	Style          string   `json:"style,omitempty"`
	Duration       int      `json:"duration,omitempty"`
	ImageURLs      []string `json:"imageUrls,omitempty"`
	Model          string   `json:"model,omitempty"`
}

/*
JobStatus is a point-in-time view of a backend job.  Progress is -1 when
the backend does not report a percentage.
*/
type JobStatus struct {
	State      JobState
	Progress   int
	ResultURLs []string
	Error      string
}

/*
Generator creates and polls remote generation jobs.
*/
type Generator interface {
	CreateJob(ctx context.Context, req JobRequest) (string, error)
	QueryJob(ctx context.Context, jobID string) (*JobStatus, error)
}

type createEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type queryEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string   `json:"taskId"`
		State      string   `json:"state"`
		Progress   *int     `json:"progress"`
		ResultURLs []string `json:"resultUrls"`
		FailMsg    string   `json:"failMsg"`
	} `json:"data"`
}

/*
GenerationClient talks to the remote generation backend over its job
API.  It remembers which backend job belongs to which task, so a retried
task reattaches to its in-flight job instead of submitting a second one.
*/
type GenerationClient struct {
	baseURL string
	apiKey  string
	model   string
	conn    *fiberClient.Client
	jobs    sync.Map
}

type GenerationClientOption func(*GenerationClient)

func NewGenerationClient(baseURL string, options ...GenerationClientOption) *GenerationClient {
	generation := &GenerationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		conn:    fiberClient.New(),
	}

	for _, option := range options {
		option(generation)
	}

	return generation
}

func WithAPIKey(key string) GenerationClientOption {
	return func(generation *GenerationClient) {
		generation.apiKey = key
	}
}

/*
WithModel sets the model submitted with jobs that do not name one
themselves.
*/
func WithModel(model string) GenerationClientOption {
	return func(generation *GenerationClient) {
		generation.model = model
	}
}

func (generation *GenerationClient) headers() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}

	if generation.apiKey != "" {
		headers["Authorization"] = "Bearer " + generation.apiKey
	}

	return headers
}

/*
CreateJob submits a new generation job and returns the backend's job id.
Failed jobs are discarded from the task mapping so a retry submits
fresh.
*/
func (generation *GenerationClient) CreateJob(
	ctx context.Context, req JobRequest,
) (string, error) {
	if cached, ok := generation.jobs.Load(req.TaskID); ok {
		jobID := cached.(string)

		if status, err := generation.QueryJob(ctx, jobID); err == nil && status.State != JobFailed {
			return jobID, nil
		}

		generation.jobs.Delete(req.TaskID)
	}

	if req.Model == "" {
		req.Model = generation.model
	}

	res, err := generation.conn.Post(generation.baseURL+"/v1/jobs", fiberClient.Config{
		Ctx:    ctx,
		Header: generation.headers(),
		Body:   req,
	})

	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return "", fmt.Errorf("create job: backend returned %d", res.StatusCode())
	}

	var envelope createEnvelope

	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if envelope.Data.TaskID == "" {
		msg := envelope.Msg

		if msg == "" {
			msg = "backend returned no job id"
		}

		return "", fmt.Errorf("create job: %s", msg)
	}

	generation.jobs.Store(req.TaskID, envelope.Data.TaskID)

	return envelope.Data.TaskID, nil
}

/*
QueryJob fetches the current state of a previously created job.
*/
func (generation *GenerationClient) QueryJob(
	ctx context.Context, jobID string,
) (*JobStatus, error) {
	res, err := generation.conn.Get(generation.baseURL+"/v1/jobs/"+jobID, fiberClient.Config{
		Ctx:    ctx,
		Header: generation.headers(),
	})

	if err != nil {
		return nil, fmt.Errorf("query job %s: %w", jobID, err)
	}

	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return nil, fmt.Errorf("query job %s: backend returned %d", jobID, res.StatusCode())
	}

	var envelope queryEnvelope

	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("query job %s: %w", jobID, err)
	}

	status := &JobStatus{
		State:      mapJobState(envelope.Data.State),
		Progress:   -1,
		ResultURLs: envelope.Data.ResultURLs,
		Error:      envelope.Data.FailMsg,
	}

	if envelope.Data.Progress != nil {
		status.Progress = *envelope.Data.Progress
	}

	return status, nil
}

/*
mapJobState folds the backend's state vocabulary onto ours.  Unknown
states count as still processing.
*/
func mapJobState(state string) JobState {
	switch strings.ToLower(state) {
	case "waiting", "queuing", "queued":
		return JobWaiting
	case "processing", "generating", "running":
		return JobProcessing
	case "success", "succeeded", "completed":
		return JobSuccess
	case "failed", "fail", "error":
		return JobFailed
	default:
		return JobProcessing
	}
}
