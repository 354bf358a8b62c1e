package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/clipforge-agent/internal/agent"
	"github.com/clipforge/clipforge-agent/internal/capability"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/script"
	"github.com/clipforge/clipforge-agent/internal/store"
)

// fakeRepo is an in-memory store.Repository.
type fakeRepo struct {
	mu       sync.Mutex
	projects map[string]*store.Project
	log      []*store.AgentLogEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{projects: make(map[string]*store.Project)}
}

func (r *fakeRepo) CreateProject(ctx context.Context, p *store.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeRepo) GetProject(ctx context.Context, id string) (*store.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	if p.Script != nil {
		sc := *p.Script
		sc.Scenes = append([]script.Scene(nil), p.Script.Scenes...)
		cp.Script = &sc
	}
	cp.FailedScenes = append([]int(nil), p.FailedScenes...)
	return &cp, nil
}

func (r *fakeRepo) ListProjects(ctx context.Context, limit int) ([]*store.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*store.Project
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) SaveProject(ctx context.Context, p *store.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return fmt.Errorf("project %s not found", p.ID)
	}
	cp := *p
	if p.Script != nil {
		sc := *p.Script
		sc.Scenes = append([]script.Scene(nil), p.Script.Scenes...)
		cp.Script = &sc
	}
	cp.FailedScenes = append([]int(nil), p.FailedScenes...)
	r.projects[p.ID] = &cp
	return nil
}

func (r *fakeRepo) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}

func (r *fakeRepo) AppendAgentLog(ctx context.Context, e *store.AgentLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, e)
	return nil
}

func (r *fakeRepo) ListAgentLog(ctx context.Context, projectID string, limit int) ([]*store.AgentLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*store.AgentLogEntry
	for _, e := range r.log {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeScriptGen struct {
	fn    func(ctx context.Context, topic, product string, sceneCount int) (*script.Script, error)
	calls int
}

func (f *fakeScriptGen) Ready() error { return nil }
func (f *fakeScriptGen) GenerateScript(ctx context.Context, topic, product string, n int) (*script.Script, error) {
	f.calls++
	return f.fn(ctx, topic, product, n)
}

type fakeSpeech struct {
	calls   int
	failFor map[int]bool // scene ordinal parsed from target path
}

func (f *fakeSpeech) Ready() error { return nil }
func (f *fakeSpeech) Synthesize(ctx context.Context, text, voice, outPath string) error {
	f.calls++
	for id := range f.failFor {
		if strings.HasSuffix(outPath, fmt.Sprintf("scene_%d.mp3", id)) {
			return errors.New("speech backend error")
		}
	}
	os.MkdirAll(filepath.Dir(outPath), 0755)
	return os.WriteFile(outPath, []byte("audio:"+text), 0644)
}

type fakeImage struct {
	calls   int
	content string
	err     error
}

func (f *fakeImage) Ready() error { return nil }
func (f *fakeImage) GenerateImage(ctx context.Context, prompt, outPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	os.MkdirAll(filepath.Dir(outPath), 0755)
	content := f.content
	if content == "" {
		content = "image:" + prompt
	}
	return os.WriteFile(outPath, []byte(content), 0644)
}

type fakeClip struct {
	calls int
}

func (f *fakeClip) Ready() error { return nil }
func (f *fakeClip) GenerateClip(ctx context.Context, prompt, aspect, outPath string) error {
	f.calls++
	os.MkdirAll(filepath.Dir(outPath), 0755)
	return os.WriteFile(outPath, []byte("clip:"+prompt), 0644)
}

type fakeMetadata struct {
	err error
}

func (f *fakeMetadata) Ready() error { return nil }
func (f *fakeMetadata) GenerateMetadata(ctx context.Context, s *script.Script, d float64) (*capability.Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &capability.Metadata{Title: "social " + s.Title, Hashtags: []string{"#shorts"}}, nil
}

type fakeReadiness struct {
	caps capability.Capabilities
}

func (f *fakeReadiness) Get(ctx context.Context) (*capability.Capabilities, error) {
	caps := f.caps
	caps.ProbedAt = time.Now()
	return &caps, nil
}

type fakeAssembler struct {
	calls int
	err   error
}

func (f *fakeAssembler) Assemble(ctx context.Context, scenes []script.Scene, musicPath, outPath string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	os.MkdirAll(filepath.Dir(outPath), 0755)
	if err := os.WriteFile(outPath, []byte("final video"), 0644); err != nil {
		return 0, err
	}
	return float64(len(scenes)) * 5, nil
}

type testEnv struct {
	svc       *Service
	repo      *fakeRepo
	scriptGen *fakeScriptGen
	speech    *fakeSpeech
	image     *fakeImage
	clip      *fakeClip
	assembler *fakeAssembler
	readiness *fakeReadiness
}

func fourSceneScript() *script.Script {
	s := &script.Script{Title: "Test Video", HookRationale: "strong open"}
	for i := 0; i < 4; i++ {
		s.Scenes = append(s.Scenes, script.Scene{
			ID:                i + 1,
			Role:              script.ExpectedRole(i, 4),
			Narration:         fmt.Sprintf("narration %d", i+1),
			VisualPrompt:      fmt.Sprintf("visual %d", i+1),
			EstimatedDuration: 5,
		})
	}
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo: newFakeRepo(),
		scriptGen: &fakeScriptGen{fn: func(ctx context.Context, topic, product string, n int) (*script.Script, error) {
			return fourSceneScript(), nil
		}},
		speech:    &fakeSpeech{failFor: map[int]bool{}},
		image:     &fakeImage{},
		clip:      &fakeClip{},
		assembler: &fakeAssembler{},
		readiness: &fakeReadiness{caps: capability.Capabilities{
			HasScript: true, HasSpeech: true, HasImage: true, HasClip: true,
		}},
	}

	exec := agent.NewExecutor(nil, nil)
	exec.SetRetryPolicy(3, time.Millisecond)

	profile := config.DefaultProfile()
	profile.SceneCount = 4

	env.svc = NewService(env.repo, exec,
		Adapters{
			Script:   env.scriptGen,
			Speech:   env.speech,
			Image:    env.image,
			Clip:     env.clip,
			Metadata: &fakeMetadata{},
		},
		env.readiness, env.assembler, profile, t.TempDir(), nil)
	return env
}

// reviewedRun drives a fresh run to asset review with all assets produced.
func reviewedRun(t *testing.T, env *testEnv) *store.Project {
	t.Helper()
	ctx := context.Background()

	p, err := env.svc.CreateRun(ctx, "desk lamp", "LumiDesk", false, 0)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := env.svc.Plan(ctx, p.ID); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, err := env.svc.ApproveScript(ctx, p.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	p, err = env.svc.ProduceAssets(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProduceAssets: %v", err)
	}
	if Stage(p.Stage) != StageAssetReview {
		t.Fatalf("stage = %s, want asset_review", p.Stage)
	}
	return p
}

func TestPlan_AdvancesToScriptReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.CreateRun(ctx, "desk lamp", "", false, 0)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if Stage(p.Stage) != StagePlanning {
		t.Fatalf("new run stage = %s", p.Stage)
	}

	p, err = env.svc.Plan(ctx, p.ID)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if Stage(p.Stage) != StageScriptReview {
		t.Errorf("stage = %s, want script_review", p.Stage)
	}
	if p.Script == nil || len(p.Script.Scenes) != 4 {
		t.Fatalf("script not stored: %+v", p.Script)
	}
}

func TestPlan_ExhaustedRetriesStayInPlanning(t *testing.T) {
	env := newTestEnv(t)
	env.scriptGen.fn = func(ctx context.Context, topic, product string, n int) (*script.Script, error) {
		return nil, errors.New("empty response")
	}
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	_, err := env.svc.Plan(ctx, p.ID)

	var exhausted *agent.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error %T, want *agent.ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", exhausted.Attempts)
	}
	if env.scriptGen.calls != 3 {
		t.Errorf("generator called %d times, want 3", env.scriptGen.calls)
	}

	got, _ := env.svc.GetRun(ctx, p.ID)
	if Stage(got.Stage) != StagePlanning {
		t.Errorf("stage = %s, want planning after exhausted retries", got.Stage)
	}
}

func TestApproveScript_RequiresBackendReadiness(t *testing.T) {
	env := newTestEnv(t)
	env.readiness.caps.HasSpeech = false
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	env.svc.Plan(ctx, p.ID)

	_, err := env.svc.ApproveScript(ctx, p.ID)
	var guard *GuardError
	if !errors.As(err, &guard) {
		t.Fatalf("error %T, want *GuardError", err)
	}

	got, _ := env.svc.GetRun(ctx, p.ID)
	if Stage(got.Stage) != StageScriptReview {
		t.Errorf("stage = %s, want script_review", got.Stage)
	}
}

func TestEditScene_OnlyDuringReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	if _, err := env.svc.EditScene(ctx, p.ID, 1, "new narration", ""); err == nil {
		t.Error("expected guard error editing during planning")
	}

	env.svc.Plan(ctx, p.ID)
	got, err := env.svc.EditScene(ctx, p.ID, 2, "edited narration", "edited visual")
	if err != nil {
		t.Fatalf("EditScene: %v", err)
	}
	sc := got.Script.SceneByID(2)
	if sc.Narration != "edited narration" || sc.VisualPrompt != "edited visual" {
		t.Errorf("scene not updated: %+v", sc)
	}
}

func TestProduceAssets_AllComplete(t *testing.T) {
	env := newTestEnv(t)
	p := reviewedRun(t, env)

	for i := range p.Script.Scenes {
		sc := &p.Script.Scenes[i]
		if !sc.AssetComplete() {
			t.Errorf("scene %d not asset-complete", sc.ID)
		}
		wantAudio := fmt.Sprintf("scene_%d.mp3", sc.ID)
		if !strings.HasSuffix(sc.AudioAsset, wantAudio) {
			t.Errorf("scene %d audio path = %q", sc.ID, sc.AudioAsset)
		}
		if sc.VisualKind != script.KindImage {
			t.Errorf("scene %d visual kind = %q, want image", sc.ID, sc.VisualKind)
		}
	}
	if len(p.FailedScenes) != 0 {
		t.Errorf("failed scenes = %v, want none", p.FailedScenes)
	}
}

func TestProduceAssets_PartialFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.speech.failFor[2] = true
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	env.svc.Plan(ctx, p.ID)
	env.svc.ApproveScript(ctx, p.ID)

	p, err := env.svc.ProduceAssets(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProduceAssets: %v", err)
	}

	if Stage(p.Stage) != StageAssetProductionPartial {
		t.Errorf("stage = %s, want asset_production_partial", p.Stage)
	}
	if len(p.FailedScenes) != 1 || p.FailedScenes[0] != 2 {
		t.Errorf("failed scenes = %v, want [2]", p.FailedScenes)
	}
	for _, id := range []int{1, 3, 4} {
		if !p.Script.SceneByID(id).AssetComplete() {
			t.Errorf("scene %d should be asset-complete", id)
		}
	}
	if p.Script.SceneByID(2).AssetComplete() {
		t.Error("scene 2 should not be asset-complete")
	}
}

func TestRetryFailed_ReusesGoodAssets(t *testing.T) {
	env := newTestEnv(t)
	env.speech.failFor[2] = true
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	env.svc.Plan(ctx, p.ID)
	env.svc.ApproveScript(ctx, p.ID)
	env.svc.ProduceAssets(ctx, p.ID)

	imageCallsAfterFirstPass := env.image.calls

	// Backend recovers; retry only the failed scene.
	delete(env.speech.failFor, 2)
	p, err := env.svc.RetryFailed(ctx, p.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}

	if Stage(p.Stage) != StageAssetReview {
		t.Errorf("stage = %s, want asset_review", p.Stage)
	}
	if len(p.FailedScenes) != 0 {
		t.Errorf("failed scenes = %v, want none", p.FailedScenes)
	}
	// Scene 2 needed one image call; scenes 1, 3, 4 must not regenerate.
	if env.image.calls != imageCallsAfterFirstPass+1 {
		t.Errorf("image calls = %d, want %d", env.image.calls, imageCallsAfterFirstPass+1)
	}
}

func TestProduceIfAbsent_NoExtraCallsOnSecondPass(t *testing.T) {
	env := newTestEnv(t)
	p := reviewedRun(t, env)
	ctx := context.Background()

	speechCalls := env.speech.calls
	imageCalls := env.image.calls

	// Go back to review and run the full production pass again; every
	// asset is already on disk, so zero external calls are made.
	if _, err := env.svc.Back(ctx, p.ID); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if _, err := env.svc.ApproveScript(ctx, p.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	p2, err := env.svc.ProduceAssets(ctx, p.ID)
	if err != nil {
		t.Fatalf("second ProduceAssets: %v", err)
	}

	if env.speech.calls != speechCalls {
		t.Errorf("speech calls grew from %d to %d on cached pass", speechCalls, env.speech.calls)
	}
	if env.image.calls != imageCalls {
		t.Errorf("image calls grew from %d to %d on cached pass", imageCalls, env.image.calls)
	}
	if Stage(p2.Stage) != StageAssetReview {
		t.Errorf("stage = %s, want asset_review", p2.Stage)
	}
}

func TestProduceAssets_PreferClipsUsesClipBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", true, 0)
	env.svc.Plan(ctx, p.ID)
	env.svc.ApproveScript(ctx, p.ID)

	p, err := env.svc.ProduceAssets(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProduceAssets: %v", err)
	}

	if env.clip.calls != 4 {
		t.Errorf("clip calls = %d, want 4", env.clip.calls)
	}
	if env.image.calls != 0 {
		t.Errorf("image calls = %d, want 0", env.image.calls)
	}
	for i := range p.Script.Scenes {
		if p.Script.Scenes[i].VisualKind != script.KindClip {
			t.Errorf("scene %d kind = %q, want clip", i+1, p.Script.Scenes[i].VisualKind)
		}
	}
}

func TestAssemble_GuardBlocksIncompleteScene(t *testing.T) {
	env := newTestEnv(t)
	p := reviewedRun(t, env)
	ctx := context.Background()

	// Knock out scene 3's visual on disk.
	visual := p.Script.SceneByID(3).VisualAsset
	if err := os.Remove(visual); err != nil {
		t.Fatal(err)
	}

	_, err := env.svc.Assemble(ctx, p.ID)
	var guard *GuardError
	if !errors.As(err, &guard) {
		t.Fatalf("error %T, want *GuardError", err)
	}
	if !strings.Contains(guard.Reason, "scene 3") {
		t.Errorf("guard reason %q should name scene 3", guard.Reason)
	}
	if env.assembler.calls != 0 {
		t.Error("assembler must not run with incomplete scenes")
	}

	// Restore the asset; the transition now fires.
	os.WriteFile(visual, []byte("image restored"), 0644)
	p, err = env.svc.Assemble(ctx, p.ID)
	if err != nil {
		t.Fatalf("Assemble after fix: %v", err)
	}
	if Stage(p.Stage) != StageDelivered {
		t.Errorf("stage = %s, want delivered", p.Stage)
	}
	if p.FinalArtifact == "" {
		t.Error("final artifact not recorded")
	}
	if !strings.Contains(p.Metadata, "social Test Video") {
		t.Errorf("metadata = %q", p.Metadata)
	}
}

func TestAssemble_FailureStaysInAssembly(t *testing.T) {
	env := newTestEnv(t)
	env.assembler.err = errors.New("encode exploded")
	p := reviewedRun(t, env)
	ctx := context.Background()

	if _, err := env.svc.Assemble(ctx, p.ID); err == nil {
		t.Fatal("expected assembly error")
	}
	if env.assembler.calls != 1 {
		t.Errorf("assembler calls = %d, want 1 (no auto-retry)", env.assembler.calls)
	}

	got, _ := env.svc.GetRun(ctx, p.ID)
	if Stage(got.Stage) != StageAssembly {
		t.Errorf("stage = %s, want assembly", got.Stage)
	}
	if got.FinalArtifact != "" {
		t.Error("failed assembly must not record an artifact")
	}

	// Explicit retry from the assembly stage succeeds.
	env.assembler.err = nil
	got, err := env.svc.Assemble(ctx, p.ID)
	if err != nil {
		t.Fatalf("retry Assemble: %v", err)
	}
	if Stage(got.Stage) != StageDelivered {
		t.Errorf("stage = %s, want delivered", got.Stage)
	}
}

func TestRegenerate_OverwritesSamePath(t *testing.T) {
	env := newTestEnv(t)
	p := reviewedRun(t, env)
	ctx := context.Background()

	sc := p.Script.SceneByID(1)
	oldPath := sc.VisualAsset
	oldContent, _ := os.ReadFile(oldPath)

	imageCalls := env.image.calls
	env.image.content = "regenerated image"

	p, err := env.svc.Regenerate(ctx, p.ID, 1, AssetVisual)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	// Forced: the backend is called even though a valid file existed.
	if env.image.calls != imageCalls+1 {
		t.Errorf("image calls = %d, want %d", env.image.calls, imageCalls+1)
	}

	sc = p.Script.SceneByID(1)
	if sc.VisualAsset != oldPath {
		t.Errorf("path changed from %q to %q", oldPath, sc.VisualAsset)
	}
	newContent, _ := os.ReadFile(oldPath)
	if string(newContent) != "regenerated image" {
		t.Errorf("content = %q, want regenerated", newContent)
	}
	if string(newContent) == string(oldContent) {
		t.Error("old content still referenced after regeneration")
	}
}

func TestRegenerate_FailureBlocksAssembly(t *testing.T) {
	env := newTestEnv(t)
	p := reviewedRun(t, env)
	ctx := context.Background()

	env.image.err = errors.New("backend down")
	if _, err := env.svc.Regenerate(ctx, p.ID, 2, AssetVisual); err == nil {
		t.Fatal("expected regeneration error")
	}

	// The old file was removed before the failed call, so the scene is no
	// longer complete and assembly is blocked.
	if _, err := env.svc.Assemble(ctx, p.ID); err == nil {
		t.Fatal("expected guard error after failed regeneration")
	}
}

func TestRegenerate_OnlyDuringAssetReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	env.svc.Plan(ctx, p.ID)

	_, err := env.svc.Regenerate(ctx, p.ID, 1, AssetAudio)
	var guard *GuardError
	if !errors.As(err, &guard) {
		t.Fatalf("error %T, want *GuardError", err)
	}
}

func TestBack_FromProductionStates(t *testing.T) {
	env := newTestEnv(t)
	env.speech.failFor[2] = true
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	env.svc.Plan(ctx, p.ID)
	env.svc.ApproveScript(ctx, p.ID)
	env.svc.ProduceAssets(ctx, p.ID)

	p, err := env.svc.Back(ctx, p.ID)
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if Stage(p.Stage) != StageScriptReview {
		t.Errorf("stage = %s, want script_review", p.Stage)
	}
	if len(p.FailedScenes) != 0 {
		t.Errorf("failed scenes should be cleared, got %v", p.FailedScenes)
	}
}

func TestBack_NotFromPlanning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.svc.CreateRun(ctx, "topic", "", false, 0)
	if _, err := env.svc.Back(ctx, p.ID); err == nil {
		t.Error("expected guard error going back from planning")
	}
}

func TestCreateRun_RequiresTopic(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.CreateRun(context.Background(), "  ", "", false, 0); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestCreateRun_SceneCountValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateRun(ctx, "topic", "", false, 2); err == nil {
		t.Error("expected error for scene count below minimum")
	}
	if _, err := env.svc.CreateRun(ctx, "topic", "", false, 7); err == nil {
		t.Error("expected error for scene count above maximum")
	}

	var requested int
	env.scriptGen.fn = func(ctx context.Context, topic, product string, n int) (*script.Script, error) {
		requested = n
		s := &script.Script{Title: "T", HookRationale: "r"}
		for i := 0; i < n; i++ {
			s.Scenes = append(s.Scenes, script.Scene{
				ID: i + 1, Role: script.ExpectedRole(i, n),
				Narration: "n", VisualPrompt: "v",
			})
		}
		return s, nil
	}

	p, err := env.svc.CreateRun(ctx, "topic", "", false, 6)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := env.svc.Plan(ctx, p.ID); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if requested != 6 {
		t.Errorf("generator asked for %d scenes, want 6", requested)
	}
}

func TestGetRun_Missing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Plan(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}
