package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-agent/internal/agent"
	"github.com/clipforge/clipforge-agent/internal/capability"
	"github.com/clipforge/clipforge-agent/internal/pipeline"
	"github.com/clipforge/clipforge-agent/internal/store"
)

// RunService is the slice of the pipeline service the HTTP surface drives.
type RunService interface {
	CreateRun(ctx context.Context, topic, product string, preferClips bool, sceneCount int) (*store.Project, error)
	GetRun(ctx context.Context, id string) (*store.Project, error)
	ListRuns(ctx context.Context, limit int) ([]*store.Project, error)
	AgentLog(ctx context.Context, id string, limit int) ([]*store.AgentLogEntry, error)
	Plan(ctx context.Context, id string) (*store.Project, error)
	EditScene(ctx context.Context, id string, sceneID int, narration, visualPrompt string) (*store.Project, error)
	ApproveScript(ctx context.Context, id string) (*store.Project, error)
	ProduceAssets(ctx context.Context, id string) (*store.Project, error)
	RetryFailed(ctx context.Context, id string) (*store.Project, error)
	Regenerate(ctx context.Context, id string, sceneID int, kind string) (*store.Project, error)
	Assemble(ctx context.Context, id string) (*store.Project, error)
	Back(ctx context.Context, id string) (*store.Project, error)
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Post("/runs", createRunHandler(cfg))
	r.Get("/runs", listRunsHandler(cfg))
	r.Get("/runs/{id}", getRunHandler(cfg))
	r.Get("/runs/{id}/log", agentLogHandler(cfg))
	r.Get("/runs/{id}/artifact", artifactHandler(cfg))
	r.Get("/runs/{id}/scenes/{n}/asset", sceneAssetHandler(cfg))
	r.Post("/runs/{id}/plan", transitionHandler(cfg, cfg.Runs.Plan))
	r.Post("/runs/{id}/scenes/{n}", editSceneHandler(cfg))
	r.Post("/runs/{id}/approve-script", transitionHandler(cfg, cfg.Runs.ApproveScript))
	r.Post("/runs/{id}/produce", transitionHandler(cfg, cfg.Runs.ProduceAssets))
	r.Post("/runs/{id}/retry-failed", transitionHandler(cfg, cfg.Runs.RetryFailed))
	r.Post("/runs/{id}/regenerate", regenerateHandler(cfg))
	r.Post("/runs/{id}/assemble", transitionHandler(cfg, cfg.Runs.Assemble))
	r.Post("/runs/{id}/back", transitionHandler(cfg, cfg.Runs.Back))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Probe != nil {
			if caps, err := cfg.Probe.Get(r.Context()); err == nil {
				resp.Capabilities = CapabilitiesToResponse(caps)
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Topic == "" {
			WriteError(w, http.StatusBadRequest, "topic is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Runs.CreateRun(r.Context(), req.Topic, req.Product, req.PreferClips, req.SceneCount)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, RunToResponse(p))
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := cfg.Runs.ListRuns(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, p := range runs {
			resp.Runs[i] = RunToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(p))
	}
}

func agentLogHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := cfg.Runs.AgentLog(r.Context(), chi.URLParam(r, "id"), 100)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := AgentLogResponse{Entries: make([]AgentLogEntryResponse, len(entries))}
		for i, e := range entries {
			resp.Entries[i] = LogEntryToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// transitionHandler serves the stage-advancing verbs that take a run id and
// no body.
func transitionHandler(cfg ServerConfig, op func(ctx context.Context, id string) (*store.Project, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := op(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(p))
	}
}

func editSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil || sceneID < 1 {
			WriteError(w, http.StatusBadRequest, "invalid scene number", "BAD_REQUEST")
			return
		}

		var req EditSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p, err := cfg.Runs.EditScene(r.Context(), chi.URLParam(r, "id"), sceneID, req.Narration, req.VisualPrompt)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(p))
	}
}

func regenerateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Scene < 1 {
			WriteError(w, http.StatusBadRequest, "scene is required", "BAD_REQUEST")
			return
		}
		if req.Kind != pipeline.AssetAudio && req.Kind != pipeline.AssetVisual {
			WriteError(w, http.StatusBadRequest, "kind must be audio or visual", "BAD_REQUEST")
			return
		}

		p, err := cfg.Runs.Regenerate(r.Context(), chi.URLParam(r, "id"), req.Scene, req.Kind)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(p))
	}
}

// artifactHandler streams the delivered video for preview.
func artifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		if p.FinalArtifact == "" {
			WriteError(w, http.StatusNotFound, "run has no final artifact yet", "NOT_FOUND")
			return
		}
		if err := cfg.Preview.ServeFile(w, r, p.FinalArtifact); err != nil {
			cfg.Logger.Error("artifact streaming error", "error", err, "run_id", p.ID)
		}
	}
}

// sceneAssetHandler streams one scene's audio or visual asset so a reviewer
// can inspect it before approving or regenerating.
func sceneAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil || sceneID < 1 {
			WriteError(w, http.StatusBadRequest, "invalid scene number", "BAD_REQUEST")
			return
		}
		kind := r.URL.Query().Get("kind")
		if kind != pipeline.AssetAudio && kind != pipeline.AssetVisual {
			WriteError(w, http.StatusBadRequest, "kind must be audio or visual", "BAD_REQUEST")
			return
		}

		p, err := cfg.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil || p.Script == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		sc := p.Script.SceneByID(sceneID)
		if sc == nil {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}

		path := sc.AudioAsset
		if kind == pipeline.AssetVisual {
			path = sc.VisualAsset
		}
		if path == "" {
			WriteError(w, http.StatusNotFound, "asset not produced yet", "NOT_FOUND")
			return
		}
		if err := cfg.Preview.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("asset streaming error", "error", err, "run_id", p.ID, "scene", sceneID)
		}
	}
}

// writeServiceError maps pipeline errors onto HTTP statuses: refused stage
// transitions are conflicts, exhausted agent retries are upstream failures.
func writeServiceError(w http.ResponseWriter, err error) {
	var guard *pipeline.GuardError
	var exhausted *agent.ExhaustedError
	switch {
	case errors.Is(err, pipeline.ErrRunNotFound):
		WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
	case errors.As(err, &guard):
		WriteError(w, http.StatusConflict, guard.Error(), "STAGE_CONFLICT")
	case errors.As(err, &exhausted):
		WriteError(w, http.StatusBadGateway, exhausted.Error(), "AGENT_EXHAUSTED")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}

// probeSource is the slice of CachedProbe the health handler reads.
type probeSource interface {
	Get(ctx context.Context) (*capability.Capabilities, error)
}

// ArtifactStreamer serves artifact files with byte-range support.
type ArtifactStreamer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, path string) error
}
