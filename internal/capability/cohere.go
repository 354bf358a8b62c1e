package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/clipforge/clipforge-agent/internal/script"
)

const scriptPreamble = `You are a short-form video scriptwriter. You write punchy vertical
video scripts for products. You always answer with a single JSON object and
nothing else.`

const scriptPromptTemplate = `Write a script for a short vertical video about: %s
Product: %s

Return JSON with exactly this shape:
{
  "title": "...",
  "hook_rationale": "one sentence on why the hook works",
  "scenes": [
    {"role": "hook", "narration": "...", "visual_prompt": "...", "estimated_duration": 3.0}
  ]
}

Rules:
- Exactly %d scenes.
- The first scene role is "hook", the last is "cta", every other is "body".
- Narration is spoken text, one or two sentences per scene.
- visual_prompt describes a single striking vertical image, no text in frame.
- estimated_duration is seconds, between 2 and 10.`

const metadataPreamble = `You write social media publishing copy for short vertical videos.
You always answer with a single JSON object and nothing else.`

const metadataPromptTemplate = `Video title: %s
Duration: %.0f seconds
Narration: %s

Return JSON: {"title": "...", "description": "...", "hashtags": ["#...", ...]}
Keep the title under 80 characters and provide at most %d hashtags.`

const maxHashtags = 15

// CohereWriter generates scripts and publishing metadata through the Cohere
// Chat API.
type CohereWriter struct {
	client *cohereclient.Client
	apiKey string
	model  string
	logger *slog.Logger
}

// NewCohereWriter builds a writer. An empty API key yields a writer that
// reports not-ready but never panics.
func NewCohereWriter(apiKey, model string, logger *slog.Logger) *CohereWriter {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &CohereWriter{
		client: cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		apiKey: apiKey,
		model:  model,
		logger: logger,
	}
}

func (w *CohereWriter) Ready() error {
	if w.apiKey == "" {
		return errors.New("cohere api key not configured")
	}
	return nil
}

// GenerateScript asks the model for a script and validates it strictly.
// Malformed output is returned as an error so the caller's retry wrapper
// treats it like any other transient failure.
func (w *CohereWriter) GenerateScript(ctx context.Context, topic, product string, sceneCount int) (*script.Script, error) {
	if err := w.Ready(); err != nil {
		return nil, err
	}
	if product == "" {
		product = "none, generic topic video"
	}

	prompt := fmt.Sprintf(scriptPromptTemplate, topic, product, sceneCount)
	text, err := w.chat(ctx, scriptPreamble, prompt)
	if err != nil {
		return nil, err
	}

	s, err := script.Parse(text, sceneCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GenerateMetadata produces publishing copy for a delivered video.
func (w *CohereWriter) GenerateMetadata(ctx context.Context, s *script.Script, durationS float64) (*Metadata, error) {
	if err := w.Ready(); err != nil {
		return nil, err
	}

	var narration []string
	for i := range s.Scenes {
		narration = append(narration, s.Scenes[i].Narration)
	}
	summary := strings.Join(narration, " ")
	if len(summary) > 1000 {
		summary = summary[:1000]
	}

	prompt := fmt.Sprintf(metadataPromptTemplate, s.Title, durationS, summary, maxHashtags)
	text, err := w.chat(ctx, metadataPreamble, prompt)
	if err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal([]byte(script.CleanModelJSON(text)), &m); err != nil {
		return nil, fmt.Errorf("malformed metadata JSON: %w", err)
	}
	if m.Title == "" {
		m.Title = s.Title
	}
	if len(m.Hashtags) > maxHashtags {
		m.Hashtags = m.Hashtags[:maxHashtags]
	}
	return &m, nil
}

func (w *CohereWriter) chat(ctx context.Context, preamble, message string) (string, error) {
	resp, err := w.client.Chat(ctx, &cohere.ChatRequest{
		Message:     message,
		Model:       cohere.String(w.model),
		Preamble:    cohere.String(preamble),
		Temperature: cohere.Float64(0.4),
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("cohere chat returned empty response")
	}
	return resp.Text, nil
}
