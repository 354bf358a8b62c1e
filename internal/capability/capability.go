// Package capability wraps each external generative service behind a
// narrow contract: a Ready probe plus one fallible operation. The pipeline
// core depends only on these interfaces, never on a concrete backend.
package capability

import (
	"context"

	"github.com/clipforge/clipforge-agent/internal/script"
)

// ScriptGenerator turns a brief into a validated script.
type ScriptGenerator interface {
	Ready() error
	GenerateScript(ctx context.Context, topic, product string, sceneCount int) (*script.Script, error)
}

// SpeechSynthesizer renders narration text to an audio file at outPath.
type SpeechSynthesizer interface {
	Ready() error
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// ImageGenerator renders a visual prompt to a still image at outPath.
type ImageGenerator interface {
	Ready() error
	GenerateImage(ctx context.Context, prompt, outPath string) error
}

// ClipGenerator renders a visual prompt to a short video clip at outPath.
// Implementations run any long-running remote operation to completion
// before returning; the caller never awaits or cancels mid-flight.
type ClipGenerator interface {
	Ready() error
	GenerateClip(ctx context.Context, prompt, aspectRatio, outPath string) error
}

// Metadata is the social publishing copy generated for a delivered video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// MetadataGenerator produces publishing metadata from a finished script.
type MetadataGenerator interface {
	Ready() error
	GenerateMetadata(ctx context.Context, s *script.Script, durationS float64) (*Metadata, error)
}
