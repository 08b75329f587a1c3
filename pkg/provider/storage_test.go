package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadDisabledMirror(t *testing.T) {
	var mirror *Mirror

	assert.Empty(t, mirror.Upload(t.Context(), "task-1", "https://cdn.example.com/out.png"))
}

func TestObjectBaseName(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/renders/out.png":  "out.png",
		"https://cdn.example.com/out.mp4?sig=abc":  "out.mp4",
		"https://cdn.example.com/":                 "asset",
		"https://cdn.example.com":                  "asset",
		"::not a url::":                            "asset",
		"https://cdn.example.com/a/b/c/final.webm": "final.webm",
	}

	for input, want := range cases {
		assert.Equal(t, want, objectBaseName(input), input)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"task/out.png": "image/png",
		"task/out.JPG": "image/jpeg",
		"task/out.mp4": "video/mp4",
		"task/out.mp3": "audio/mpeg",
		"task/out.bin": "application/octet-stream",
		"task/asset":   "application/octet-stream",
	}

	for input, want := range cases {
		assert.Equal(t, want, contentTypeFor(input), input)
	}
}
