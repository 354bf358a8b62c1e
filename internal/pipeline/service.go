package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clipforge/clipforge-agent/internal/agent"
	"github.com/clipforge/clipforge-agent/internal/assembly"
	"github.com/clipforge/clipforge-agent/internal/capability"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/script"
	"github.com/clipforge/clipforge-agent/internal/store"
)

// Asset kinds a human can target for forced regeneration.
const (
	AssetAudio  = "audio"
	AssetVisual = "visual"
)

// Adapters bundles the capability backends a service drives.
type Adapters struct {
	Script   capability.ScriptGenerator
	Speech   capability.SpeechSynthesizer
	Image    capability.ImageGenerator
	Clip     capability.ClipGenerator
	Metadata capability.MetadataGenerator
}

// readiness is the slice of CachedProbe the guards consult.
type readiness interface {
	Get(ctx context.Context) (*capability.Capabilities, error)
}

// Service owns every run's stage transitions. All mutation of a run goes
// through exactly one stage handler at a time, serialised per run.
type Service struct {
	repo      store.Repository
	exec      *agent.Executor
	adapters  Adapters
	probe     readiness
	assembler assembly.Assembler
	profile   config.Profile
	runsDir   string
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo store.Repository, exec *agent.Executor, adapters Adapters, probe readiness, assembler assembly.Assembler, profile config.Profile, runsDir string, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		exec:      exec,
		adapters:  adapters,
		probe:     probe,
		assembler: assembler,
		profile:   profile,
		runsDir:   runsDir,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockRun serialises stage handlers per run. The returned func releases.
func (s *Service) lockRun(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) runDir(p *store.Project) string {
	return filepath.Join(s.runsDir, p.ID)
}

// CreateRun starts a new run in the planning stage. sceneCount zero takes
// the profile default.
func (s *Service) CreateRun(ctx context.Context, topic, product string, preferClips bool, sceneCount int) (*store.Project, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if sceneCount != 0 && (sceneCount < script.MinScenes || sceneCount > script.MaxScenes) {
		return nil, fmt.Errorf("scene count must be between %d and %d", script.MinScenes, script.MaxScenes)
	}

	now := time.Now().UTC()
	p := &store.Project{
		ID:          store.NewID(),
		Topic:       topic,
		Product:     product,
		Stage:       string(StagePlanning),
		PreferClips: preferClips,
		SceneCount:  sceneCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := os.MkdirAll(s.runDir(p), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("run created", "run_id", p.ID, "topic", topic, "prefer_clips", preferClips)
	}
	return p, nil
}

// GetRun rehydrates a run from the store.
func (s *Service) GetRun(ctx context.Context, id string) (*store.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*store.Project, error) {
	return s.repo.ListProjects(ctx, limit)
}

// AgentLog returns the audit trail for a run.
func (s *Service) AgentLog(ctx context.Context, id string, limit int) ([]*store.AgentLogEntry, error) {
	return s.repo.ListAgentLog(ctx, id, limit)
}

// Plan generates the script. On success the run advances to script review;
// if every attempt produces a failed call or an invalid script, the run
// stays in planning and the terminal error is surfaced.
func (s *Service) Plan(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StagePlanning {
		return nil, guardErr(Stage(p.Stage), "planning already complete")
	}

	sceneCount := p.SceneCount
	if sceneCount == 0 {
		sceneCount = s.profile.SceneCount
	}

	var generated *script.Script
	_, err = s.exec.Execute(ctx, "scriptwriter", func(ctx context.Context) (string, error) {
		sc, err := s.adapters.Script.GenerateScript(ctx, p.Topic, p.Product, sceneCount)
		if err != nil {
			return "", err
		}
		generated = sc
		return sc.Title, nil
	}, agent.Options{RunID: p.ID, Input: snippet(p.Topic)})
	if err != nil {
		return nil, err
	}

	p.Script = generated
	p.Stage = string(StageScriptReview)
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("script planned", "run_id", p.ID, "title", p.Script.Title, "scenes", len(p.Script.Scenes))
	}
	return p, nil
}

// EditScene updates a scene's narration or visual prompt during review.
// Fields left empty keep their current value.
func (s *Service) EditScene(ctx context.Context, id string, sceneID int, narration, visualPrompt string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StageScriptReview {
		return nil, guardErr(Stage(p.Stage), "script fields are only editable during script review")
	}

	sc := p.Script.SceneByID(sceneID)
	if sc == nil {
		return nil, fmt.Errorf("scene %d not found", sceneID)
	}

	if strings.TrimSpace(narration) != "" {
		sc.Narration = narration
	}
	if strings.TrimSpace(visualPrompt) != "" {
		sc.VisualPrompt = visualPrompt
	}

	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApproveScript freezes the script and advances to asset production,
// provided the speech and visual backends report ready.
func (s *Service) ApproveScript(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StageScriptReview {
		return nil, guardErr(Stage(p.Stage), "no script awaiting approval")
	}
	if p.Script == nil {
		return nil, guardErr(StageScriptReview, "run has no script")
	}

	caps, err := s.probe.Get(ctx)
	if err != nil {
		return nil, guardErr(StageScriptReview, "readiness probe failed: %v", err)
	}
	if !caps.CanProduce(p.PreferClips) {
		return nil, guardErr(StageScriptReview, "required backends not ready (speech=%v image=%v clip=%v, prefer_clips=%v)",
			caps.HasSpeech, caps.HasImage, caps.HasClip, p.PreferClips)
	}

	p.Stage = string(StageAssetProduction)
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProduceAssets runs the per-scene production pass over every scene. An
// all-complete pass advances to asset review; per-scene terminal failures
// move the run to the partial state with the failed ids recorded.
func (s *Service) ProduceAssets(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StageAssetProduction {
		return nil, guardErr(Stage(p.Stage), "run is not in asset production")
	}

	ids := make([]int, 0, len(p.Script.Scenes))
	for i := range p.Script.Scenes {
		ids = append(ids, p.Script.Scenes[i].ID)
	}

	failed, err := s.produceScenes(ctx, p, ids, false)
	if err != nil {
		// Cancelled between units of work: no transition.
		if saveErr := s.repo.SaveProject(ctx, p); saveErr != nil && s.logger != nil {
			s.logger.Error("failed to persist partial production state", "run_id", p.ID, "error", saveErr)
		}
		return nil, err
	}

	s.settleProduction(p, failed)
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RetryFailed re-enters asset production scoped to the scenes that failed
// the previous pass. Already-good assets are untouched.
func (s *Service) RetryFailed(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StageAssetProductionPartial {
		return nil, guardErr(Stage(p.Stage), "no failed scenes to retry")
	}

	ids := append([]int(nil), p.FailedScenes...)
	p.Stage = string(StageAssetProduction)

	failed, err := s.produceScenes(ctx, p, ids, false)
	if err != nil {
		if saveErr := s.repo.SaveProject(ctx, p); saveErr != nil && s.logger != nil {
			s.logger.Error("failed to persist partial production state", "run_id", p.ID, "error", saveErr)
		}
		return nil, err
	}

	s.settleProduction(p, failed)
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// settleProduction applies the post-pass transition: empty failed set and a
// fully complete script advance to review, anything else is partial.
func (s *Service) settleProduction(p *store.Project, failed []int) {
	if len(failed) == 0 && p.Script.AllAssetComplete() {
		p.FailedScenes = nil
		p.Stage = string(StageAssetReview)
		return
	}
	sort.Ints(failed)
	p.FailedScenes = failed
	p.Stage = string(StageAssetProductionPartial)
}

// Regenerate forces regeneration of exactly one scene's audio or visual
// asset during asset review, bypassing the cache check. The new artifact
// overwrites the old one at the same deterministic path.
func (s *Service) Regenerate(ctx context.Context, id string, sceneID int, kind string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if Stage(p.Stage) != StageAssetReview {
		return nil, guardErr(Stage(p.Stage), "regeneration is only available during asset review")
	}
	if kind != AssetAudio && kind != AssetVisual {
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}

	sc := p.Script.SceneByID(sceneID)
	if sc == nil {
		return nil, fmt.Errorf("scene %d not found", sceneID)
	}

	var prodErr error
	if kind == AssetAudio {
		prodErr = s.produceAudio(ctx, p, sc, true)
	} else {
		prodErr = s.produceVisual(ctx, p, sc, true)
	}

	if saveErr := s.repo.SaveProject(ctx, p); saveErr != nil {
		return nil, saveErr
	}
	if prodErr != nil {
		return p, prodErr
	}
	return p, nil
}

// Assemble produces the final artifact. Allowed from asset review (guarded
// on every scene being asset-complete) and from assembly itself, which is
// the explicit retry path. Assembly failures are terminal for the call and
// are never auto-retried.
func (s *Service) Assemble(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch Stage(p.Stage) {
	case StageAssetReview:
		if incomplete := incompleteScenes(p); len(incomplete) > 0 {
			return nil, guardErr(StageAssetReview, "scenes not asset-complete: %s", strings.Join(incomplete, ", "))
		}
		p.Stage = string(StageAssembly)
		if err := s.repo.SaveProject(ctx, p); err != nil {
			return nil, err
		}
	case StageAssembly:
		// retry after a failed assembly
	default:
		return nil, guardErr(Stage(p.Stage), "run is not ready for assembly")
	}

	outPath := filepath.Join(s.runDir(p), "final_video.mp4")
	start := time.Now()
	duration, err := s.assembler.Assemble(ctx, p.Script.Scenes, s.profile.BackgroundTrack, outPath)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("assembly failed", "run_id", p.ID, "elapsed_s", time.Since(start).Seconds(), "error", err)
		}
		return nil, fmt.Errorf("assembly failed: %w", err)
	}

	p.FinalArtifact = outPath
	p.Stage = string(StageDelivered)
	s.attachMetadata(ctx, p, duration)

	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("run delivered", "run_id", p.ID, "duration_s", duration)
	}
	return p, nil
}

// attachMetadata generates publishing copy for the delivered video. This is
// best-effort: a failure falls back to script-derived defaults and never
// blocks delivery.
func (s *Service) attachMetadata(ctx context.Context, p *store.Project, duration float64) {
	meta := &capability.Metadata{Title: p.Script.Title}

	if s.adapters.Metadata != nil && s.adapters.Metadata.Ready() == nil {
		var generated *capability.Metadata
		_, err := s.exec.Execute(ctx, "social_optimizer", func(ctx context.Context) (string, error) {
			m, err := s.adapters.Metadata.GenerateMetadata(ctx, p.Script, duration)
			if err != nil {
				return "", err
			}
			generated = m
			return m.Title, nil
		}, agent.Options{RunID: p.ID, Input: snippet(p.Script.Title)})
		if err == nil {
			meta = generated
		} else if s.logger != nil {
			s.logger.Warn("metadata generation failed, using defaults", "run_id", p.ID, "error", err)
		}
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	p.Metadata = string(b)
}

// Back returns the run to script review from any production or review
// state. Existing assets stay on disk; re-entering production reuses them
// through the produce-if-absent check.
func (s *Service) Back(ctx context.Context, id string) (*store.Project, error) {
	defer s.lockRun(id)()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canReturnToReview(Stage(p.Stage)) {
		return nil, guardErr(Stage(p.Stage), "cannot return to script review from here")
	}

	p.Stage = string(StageScriptReview)
	p.FailedScenes = nil
	if err := s.repo.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, id string) (*store.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrRunNotFound
	}
	return p, nil
}

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = fmt.Errorf("run not found")

// incompleteScenes describes which scene assets are missing, for guard
// messages.
func incompleteScenes(p *store.Project) []string {
	var out []string
	for i := range p.Script.Scenes {
		sc := &p.Script.Scenes[i]
		if sc.AssetComplete() {
			continue
		}
		var missing []string
		if !script.AssetValid(sc.AudioAsset) {
			missing = append(missing, "audio")
		}
		if !script.AssetValid(sc.VisualAsset) {
			missing = append(missing, "visual")
		}
		out = append(out, fmt.Sprintf("scene %d (%s)", sc.ID, strings.Join(missing, "+")))
	}
	return out
}

func snippet(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
