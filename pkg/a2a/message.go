package a2a

import "strings"

/*
Message represents all non-artifact communication between client & agent.
*/
type Message struct {
	Role     string         `json:"role"` // "user" or "agent"
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewFileMessage(role string, file *FilePart) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeFile, File: file},
		},
	}
}

/*
FirstText returns the text of the first text part, or the empty string
when the message has none.  Safe on a nil message.
*/
func (msg *Message) FirstText() string {
	if msg == nil {
		return ""
	}

	for _, part := range msg.Parts {
		if part.Type == PartTypeText {
			return part.Text
		}
	}

	return ""
}

/*
Clone returns a copy with a detached parts slice.  Safe on a nil message.
*/
func (msg *Message) Clone() *Message {
	if msg == nil {
		return nil
	}

	clone := *msg
	clone.Parts = append([]Part(nil), msg.Parts...)

	if msg.Metadata != nil {
		clone.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}
