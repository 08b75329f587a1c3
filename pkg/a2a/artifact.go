package a2a

import "github.com/theapemachine/mediagen/pkg/utils"

/*
Artifact is the output of a task.  Generated assets put the asset URL in
the first part; a sibling text part carries a JSON-encoded metadata blob.
*/
type Artifact struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Index       int            `json:"index,omitempty"`
}

func NewMediaArtifact(name string, description string, parts ...Part) Artifact {
	return Artifact{
		Name:        utils.Ptr(name),
		Description: utils.Ptr(description),
		Parts:       parts,
	}
}

/*
Clone returns a copy with a detached parts slice.
*/
func (artifact Artifact) Clone() Artifact {
	clone := artifact
	clone.Parts = append([]Part(nil), artifact.Parts...)

	if artifact.Metadata != nil {
		clone.Metadata = make(map[string]any, len(artifact.Metadata))
		for k, v := range artifact.Metadata {
			clone.Metadata[k] = v
		}
	}

	return clone
}

/*
AssetURL returns the URL of the first part that carries one, which by
convention is the generated asset.
*/
func (artifact Artifact) AssetURL() string {
	for _, part := range artifact.Parts {
		if part.URL != "" {
			return part.URL
		}
	}

	return ""
}
