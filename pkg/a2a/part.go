package a2a

import "encoding/base64"

/*
Part is a discriminated union over the media kinds a message or artifact
may carry.  We keep it simple by embedding all optional fields in a single
struct – this avoids heavy custom JSON marshalling logic while remaining
wire-compatible.

NOTE: Exactly one of Text, URL or File should be populated according to
the Type field. This is not enforced at the struct level, but applications
should ensure this constraint is respected when creating Parts.
*/
type Part struct {
	Type PartType `json:"type"`

	// Exactly one of the following should be populated depending on Type.
	Text string    `json:"text,omitempty"`
	URL  string    `json:"url,omitempty"`
	File *FilePart `json:"file,omitempty"`

	// AudioURL mirrors URL on audio parts for players that only read the
	// audioUrl field.
	AudioURL string `json:"audioUrl,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType is the discriminator for a Part union.
type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
	PartTypeAudio PartType = "audio"
	PartTypeVideo PartType = "video"
	PartTypeFile  PartType = "file"
)

type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Data     string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{
		Type: PartTypeText,
		Text: text,
	}
}

func NewImagePart(url string) Part {
	return Part{
		Type: PartTypeImage,
		URL:  url,
	}
}

func NewVideoPart(url string) Part {
	return Part{
		Type: PartTypeVideo,
		URL:  url,
	}
}

func NewAudioPart(url string) Part {
	return Part{
		Type:     PartTypeAudio,
		URL:      url,
		AudioURL: url,
	}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}
