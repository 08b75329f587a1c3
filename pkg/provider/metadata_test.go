package provider

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFallsBackWithoutClient(t *testing.T) {
	metadata := NewMetadataClient()

	raw := metadata.Generate(t.Context(), "a lighthouse at dusk", "image")

	var doc metadataDoc
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "a lighthouse at dusk", doc.Title)
	assert.Contains(t, doc.Tags, "image")
	assert.Contains(t, doc.Tags, "generated")
}

func TestGenerateNilReceiver(t *testing.T) {
	var metadata *MetadataClient

	raw := metadata.Generate(t.Context(), "waves", "video")

	var doc metadataDoc
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Contains(t, doc.Tags, "video")
}

func TestFallbackMetadataTruncatesTitle(t *testing.T) {
	prompt := strings.Repeat("x", 200)

	var doc metadataDoc
	require.NoError(t, json.Unmarshal([]byte(fallbackMetadata(prompt, "image")), &doc))

	assert.Len(t, doc.Title, 60)
	assert.Equal(t, "Generated image asset.", doc.Description)
}

func TestFallbackMetadataEmptyPrompt(t *testing.T) {
	var doc metadataDoc
	require.NoError(t, json.Unmarshal([]byte(fallbackMetadata("  ", "audio")), &doc))

	assert.Equal(t, "Generated audio", doc.Title)
}
