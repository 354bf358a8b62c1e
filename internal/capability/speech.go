package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/clipforge-agent/internal/logging"
)

// DeepgramSpeech synthesizes narration through the Deepgram speak REST API.
type DeepgramSpeech struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDeepgramSpeech(baseURL, apiKey string, logger *slog.Logger) *DeepgramSpeech {
	return &DeepgramSpeech{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (d *DeepgramSpeech) Ready() error {
	if d.apiKey == "" {
		return errors.New("deepgram api key not configured")
	}
	return nil
}

// Synthesize renders text with the given voice and writes an MP3 to
// outPath. A zero-byte response is an error, not a silent success.
func (d *DeepgramSpeech) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if err := d.Ready(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/speak?model=%s", d.baseURL, url.QueryEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("speak request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("speak returned HTTP %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read audio response: %w", err)
	}

	if err := writeAsset(outPath, audio); err != nil {
		return err
	}

	if d.logger != nil {
		d.logger.Debug("narration synthesized",
			"voice", voice,
			"bytes", len(audio),
			"path", logging.SanitizePath(outPath),
		)
	}
	return nil
}

// writeAsset writes data to path, creating parent directories. Empty data
// is rejected so a bad upstream response never produces a cache hit.
func writeAsset(path string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty asset payload")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write asset: %w", err)
	}
	return nil
}
