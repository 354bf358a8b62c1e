package api

import (
	"encoding/json"
	"time"

	"github.com/clipforge/clipforge-agent/internal/capability"
	"github.com/clipforge/clipforge-agent/internal/script"
	"github.com/clipforge/clipforge-agent/internal/store"
)

type HealthResponse struct {
	Status       string                `json:"status"`
	Version      string                `json:"version"`
	UptimeS      int64                 `json:"uptime_s"`
	Capabilities *CapabilitiesResponse `json:"capabilities,omitempty"`
}

type CapabilitiesResponse struct {
	HasScript   bool   `json:"has_script"`
	HasSpeech   bool   `json:"has_speech"`
	HasImage    bool   `json:"has_image"`
	HasClip     bool   `json:"has_clip"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type CreateRunRequest struct {
	Topic       string `json:"topic"`
	Product     string `json:"product,omitempty"`
	PreferClips bool   `json:"prefer_clips,omitempty"`
	SceneCount  int    `json:"scene_count,omitempty"`
}

type EditSceneRequest struct {
	Narration    string `json:"narration,omitempty"`
	VisualPrompt string `json:"visual_prompt,omitempty"`
}

type RegenerateRequest struct {
	Scene int    `json:"scene"`
	Kind  string `json:"kind"`
}

type SceneResponse struct {
	ID                int     `json:"id"`
	Role              string  `json:"role"`
	Narration         string  `json:"narration"`
	VisualPrompt      string  `json:"visual_prompt"`
	EstimatedDuration float64 `json:"estimated_duration_s,omitempty"`
	AudioReady        bool    `json:"audio_ready"`
	VisualReady       bool    `json:"visual_ready"`
	VisualKind        string  `json:"visual_kind,omitempty"`
}

type RunResponse struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Product       string          `json:"product,omitempty"`
	Stage         string          `json:"stage"`
	PreferClips   bool            `json:"prefer_clips"`
	Title         string          `json:"title,omitempty"`
	HookRationale string          `json:"hook_rationale,omitempty"`
	Scenes        []SceneResponse `json:"scenes,omitempty"`
	FailedScenes  []int           `json:"failed_scenes,omitempty"`
	FinalArtifact string          `json:"final_artifact,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type AgentLogEntryResponse struct {
	ID            int64   `json:"id"`
	AgentName     string  `json:"agent_name"`
	Status        string  `json:"status"`
	Input         string  `json:"input,omitempty"`
	Output        string  `json:"output,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	ExecutionTime float64 `json:"execution_time_s"`
	Attempts      int     `json:"attempts"`
	CreatedAt     string  `json:"created_at"`
}

type AgentLogResponse struct {
	Entries []AgentLogEntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RunToResponse(p *store.Project) RunResponse {
	resp := RunResponse{
		ID:            p.ID,
		Topic:         p.Topic,
		Product:       p.Product,
		Stage:         p.Stage,
		PreferClips:   p.PreferClips,
		FailedScenes:  p.FailedScenes,
		FinalArtifact: p.FinalArtifact,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Metadata != "" {
		resp.Metadata = json.RawMessage(p.Metadata)
	}
	if p.Script != nil {
		resp.Title = p.Script.Title
		resp.HookRationale = p.Script.HookRationale
		resp.Scenes = make([]SceneResponse, len(p.Script.Scenes))
		for i := range p.Script.Scenes {
			resp.Scenes[i] = SceneToResponse(&p.Script.Scenes[i])
		}
	}
	return resp
}

func SceneToResponse(sc *script.Scene) SceneResponse {
	return SceneResponse{
		ID:                sc.ID,
		Role:              sc.Role,
		Narration:         sc.Narration,
		VisualPrompt:      sc.VisualPrompt,
		EstimatedDuration: sc.EstimatedDuration,
		AudioReady:        script.AssetValid(sc.AudioAsset),
		VisualReady:       script.AssetValid(sc.VisualAsset),
		VisualKind:        sc.VisualKind,
	}
}

func LogEntryToResponse(e *store.AgentLogEntry) AgentLogEntryResponse {
	return AgentLogEntryResponse{
		ID:            e.ID,
		AgentName:     e.AgentName,
		Status:        e.Status,
		Input:         e.Input,
		Output:        e.Output,
		ErrorMessage:  e.ErrorMessage,
		ExecutionTime: e.ExecutionTime,
		Attempts:      e.Attempts,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

func CapabilitiesToResponse(caps *capability.Capabilities) *CapabilitiesResponse {
	if caps == nil {
		return nil
	}
	return &CapabilitiesResponse{
		HasScript:   caps.HasScript,
		HasSpeech:   caps.HasSpeech,
		HasImage:    caps.HasImage,
		HasClip:     caps.HasClip,
		LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
	}
}
