package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/clipforge/clipforge-agent/internal/agent"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/script"
	"github.com/clipforge/clipforge-agent/internal/store"
)

// produceScenes runs the per-scene production pass over the given scene
// ids in ascending order: audio first, then the visual, each with
// produce-if-absent semantics unless forced. A scene whose audio fails
// terminally is recorded and skipped; sibling scenes always continue.
// Only a cancellation between units of work returns an error.
func (s *Service) produceScenes(ctx context.Context, p *store.Project, ids []int, forced bool) ([]int, error) {
	sort.Ints(ids)

	var failed []int
	for _, sceneID := range ids {
		// Cancellation is checked between scenes only; an in-flight
		// external call always runs to completion.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sc := p.Script.SceneByID(sceneID)
		if sc == nil {
			failed = append(failed, sceneID)
			continue
		}

		if err := s.produceAudio(ctx, p, sc, forced); err != nil {
			if s.logger != nil {
				s.logger.Warn("scene audio failed", "run_id", p.ID, "scene", sc.ID, "error", err)
			}
			failed = append(failed, sc.ID)
			continue
		}

		if err := s.produceVisual(ctx, p, sc, forced); err != nil {
			if s.logger != nil {
				s.logger.Warn("scene visual failed", "run_id", p.ID, "scene", sc.ID, "error", err)
			}
			failed = append(failed, sc.ID)
			continue
		}

		// Persist per scene so a crash never loses finished assets.
		if err := s.repo.SaveProject(ctx, p); err != nil && s.logger != nil {
			s.logger.Error("failed to persist scene progress", "run_id", p.ID, "scene", sc.ID, "error", err)
		}
	}
	return failed, nil
}

// produceAudio fills the scene's narration audio. The deterministic target
// path is the cache key: when the file already exists non-empty and the
// call is not forced, no external call is made.
func (s *Service) produceAudio(ctx context.Context, p *store.Project, sc *script.Scene, forced bool) error {
	target := script.AudioPath(s.runDir(p), sc.ID)

	if !forced && script.AssetValid(target) {
		sc.AudioAsset = target
		if s.logger != nil {
			s.logger.Debug("audio cache hit", "run_id", p.ID, "scene", sc.ID, "path", logging.SanitizePath(target))
		}
		return nil
	}

	if forced {
		// Regeneration overwrites in place; remove first so a failed
		// call cannot leave a stale artifact counting as a cache hit.
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old audio: %w", err)
		}
	}

	_, err := s.exec.Execute(ctx, "audio_generator", func(ctx context.Context) (string, error) {
		if err := s.adapters.Speech.Synthesize(ctx, sc.Narration, s.profile.Voice, target); err != nil {
			return "", err
		}
		return target, nil
	}, agent.Options{RunID: p.ID, Input: snippet(sc.Narration)})
	if err != nil {
		return err
	}

	sc.AudioAsset = target
	return nil
}

// produceVisual fills the scene's visual asset, choosing image or clip
// generation from the run's mode flag. Same produce-if-absent contract as
// audio.
func (s *Service) produceVisual(ctx context.Context, p *store.Project, sc *script.Scene, forced bool) error {
	kind := script.KindImage
	if p.PreferClips {
		kind = script.KindClip
	}
	target := script.VisualPath(s.runDir(p), sc.ID, kind)

	if !forced && script.AssetValid(target) {
		sc.VisualAsset = target
		sc.VisualKind = kind
		if s.logger != nil {
			s.logger.Debug("visual cache hit", "run_id", p.ID, "scene", sc.ID, "path", logging.SanitizePath(target))
		}
		return nil
	}

	if forced {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old visual: %w", err)
		}
	}

	var name string
	var op agent.Operation
	if kind == script.KindClip {
		name = "clip_generator"
		op = func(ctx context.Context) (string, error) {
			if err := s.adapters.Clip.GenerateClip(ctx, sc.VisualPrompt, s.profile.AspectRatio, target); err != nil {
				return "", err
			}
			return target, nil
		}
	} else {
		name = "visual_generator"
		op = func(ctx context.Context) (string, error) {
			if err := s.adapters.Image.GenerateImage(ctx, sc.VisualPrompt, target); err != nil {
				return "", err
			}
			return target, nil
		}
	}

	_, err := s.exec.Execute(ctx, name, op, agent.Options{RunID: p.ID, Input: snippet(sc.VisualPrompt)})
	if err != nil {
		return err
	}

	sc.VisualAsset = target
	sc.VisualKind = kind
	return nil
}
