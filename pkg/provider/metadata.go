package provider

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const metadataSystemPrompt = `You describe generated media assets. Respond with a single JSON object
containing exactly these keys: "title" (short, under 8 words),
"description" (one sentence), "tags" (array of 3 to 6 lowercase strings).
No prose, no markdown fences.`

/*
metadataDoc is the JSON document that rides along every generated asset.
*/
type metadataDoc struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

/*
MetadataClient asks a chat model to describe a generated asset.  It
never fails the surrounding task: any upstream problem falls back to a
static document derived from the prompt.
*/
type MetadataClient struct {
	client *openai.Client
	model  openai.ChatModel
}

type MetadataClientOption func(*MetadataClient)

func NewMetadataClient(options ...MetadataClientOption) *MetadataClient {
	metadata := &MetadataClient{
		model: openai.ChatModelGPT4oMini,
	}

	for _, option := range options {
		option(metadata)
	}

	return metadata
}

func WithOpenAIClient() MetadataClientOption {
	return func(metadata *MetadataClient) {
		client := openai.NewClient(
			option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
		)

		metadata.client = &client
	}
}

func WithMetadataModel(model string) MetadataClientOption {
	return func(metadata *MetadataClient) {
		metadata.model = openai.ChatModel(model)
	}
}

/*
Generate returns the metadata JSON for an asset produced from prompt.
A nil receiver or unconfigured client yields the fallback document.
*/
func (metadata *MetadataClient) Generate(
	ctx context.Context, prompt string, kind string,
) string {
	if metadata == nil || metadata.client == nil {
		return fallbackMetadata(prompt, kind)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	completion, err := metadata.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: metadata.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(metadataSystemPrompt),
			openai.UserMessage("A generated " + kind + " from the prompt: " + prompt),
		},
	})

	if err != nil {
		log.Warn("metadata generation failed", "kind", kind, "error", err)
		return fallbackMetadata(prompt, kind)
	}

	if len(completion.Choices) == 0 {
		return fallbackMetadata(prompt, kind)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)

	var doc metadataDoc

	if err := json.Unmarshal([]byte(content), &doc); err != nil || doc.Title == "" {
		log.Warn("metadata response was not usable JSON", "kind", kind)
		return fallbackMetadata(prompt, kind)
	}

	buf, err := json.Marshal(doc)

	if err != nil {
		return fallbackMetadata(prompt, kind)
	}

	return string(buf)
}

func fallbackMetadata(prompt string, kind string) string {
	title := strings.TrimSpace(prompt)

	if len(title) > 60 {
		title = title[:60]
	}

	if title == "" {
		title = "Generated " + kind
	}

	buf, _ := json.Marshal(metadataDoc{
		Title:       title,
		Description: "Generated " + kind + " asset.",
		Tags:        []string{kind, "generated"},
	})

	return string(buf)
}
