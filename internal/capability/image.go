package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clipforge/clipforge-agent/internal/logging"
)

// TogetherImage generates still images through a Together-style image API
// returning base64-encoded payloads.
type TogetherImage struct {
	baseURL     string
	apiKey      string
	model       string
	styleSuffix string
	width       int
	height      int
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewTogetherImage(baseURL, apiKey, model, styleSuffix string, width, height int, logger *slog.Logger) *TogetherImage {
	return &TogetherImage{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		styleSuffix: styleSuffix,
		width:       width,
		height:      height,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

func (t *TogetherImage) Ready() error {
	if t.apiKey == "" {
		return errors.New("together api key not configured")
	}
	return nil
}

// GenerateImage renders the prompt to a PNG at outPath. The configured
// style suffix is appended so every scene shares one visual treatment.
func (t *TogetherImage) GenerateImage(ctx context.Context, prompt, outPath string) error {
	if err := t.Ready(); err != nil {
		return err
	}

	payload := map[string]any{
		"model":           t.model,
		"prompt":          t.enhancePrompt(prompt),
		"width":           t.width,
		"height":          t.height,
		"steps":           4,
		"n":               1,
		"response_format": "b64_json",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("image generation returned HTTP %d: %s", resp.StatusCode, detail)
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("malformed image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return errors.New("image response carried no payload")
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return fmt.Errorf("failed to decode image payload: %w", err)
	}

	if err := writeAsset(outPath, raw); err != nil {
		return err
	}

	if t.logger != nil {
		t.logger.Debug("image generated",
			"bytes", len(raw),
			"path", logging.SanitizePath(outPath),
		)
	}
	return nil
}

func (t *TogetherImage) enhancePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if t.styleSuffix == "" {
		return prompt
	}
	return prompt + ", " + t.styleSuffix
}
