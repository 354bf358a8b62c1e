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
	"time"

	"github.com/clipforge/clipforge-agent/internal/logging"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultMaxPolls     = 60
)

// VeoClip generates short video clips through a long-running-operation API:
// start the operation, poll until done, then download the result. The whole
// sequence runs to completion before GenerateClip returns.
type VeoClip struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewVeoClip(baseURL, apiKey string, logger *slog.Logger) *VeoClip {
	return &VeoClip{
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		logger:       logger,
	}
}

func (v *VeoClip) Ready() error {
	if v.apiKey == "" {
		return errors.New("clip api key not configured")
	}
	if v.baseURL == "" {
		return errors.New("clip base url not configured")
	}
	return nil
}

type clipOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		VideoURI string `json:"video_uri"`
	} `json:"response,omitempty"`
}

// GenerateClip starts a generation operation, polls it to completion within
// a bounded budget, and downloads the resulting clip to outPath.
func (v *VeoClip) GenerateClip(ctx context.Context, prompt, aspectRatio, outPath string) error {
	if err := v.Ready(); err != nil {
		return err
	}

	op, err := v.startOperation(ctx, prompt, aspectRatio)
	if err != nil {
		return err
	}

	if v.logger != nil {
		v.logger.Debug("clip operation started", "operation", op.Name)
	}

	for poll := 0; !op.Done; poll++ {
		if poll >= v.maxPolls {
			return fmt.Errorf("clip operation %s did not finish within %d polls", op.Name, v.maxPolls)
		}
		if err := sleepPoll(ctx, v.pollInterval); err != nil {
			return err
		}
		op, err = v.pollOperation(ctx, op.Name)
		if err != nil {
			return err
		}
	}

	if op.Error != nil {
		return fmt.Errorf("clip operation failed: %s", op.Error.Message)
	}
	if op.Response == nil || op.Response.VideoURI == "" {
		return errors.New("clip operation finished without a video")
	}

	if err := v.download(ctx, op.Response.VideoURI, outPath); err != nil {
		return err
	}

	if v.logger != nil {
		v.logger.Debug("clip downloaded", "path", logging.SanitizePath(outPath))
	}
	return nil
}

func (v *VeoClip) startOperation(ctx context.Context, prompt, aspectRatio string) (*clipOperation, error) {
	body, err := json.Marshal(map[string]string{
		"prompt":       prompt,
		"aspect_ratio": aspectRatio,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/operations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return v.doOperation(req, "start")
}

func (v *VeoClip) pollOperation(ctx context.Context, name string) (*clipOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1/operations/"+name, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	return v.doOperation(req, "poll")
}

func (v *VeoClip) doOperation(req *http.Request, phase string) (*clipOperation, error) {
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip %s request failed: %w", phase, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("clip %s returned HTTP %d: %s", phase, resp.StatusCode, detail)
	}

	var op clipOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("malformed clip operation response: %w", err)
	}
	if op.Name == "" {
		return nil, errors.New("clip operation response carried no name")
	}
	return &op, nil
}

func (v *VeoClip) download(ctx context.Context, uri, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clip download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip download returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read clip body: %w", err)
	}
	return writeAsset(outPath, data)
}

func sleepPoll(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
