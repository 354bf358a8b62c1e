// Package script defines the scene and script model for a production run:
// the narrative beats generated during planning, the per-scene asset
// references filled in during production, and the validation rules a
// generated script must satisfy before it reaches human review.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	RoleHook = "hook"
	RoleBody = "body"
	RoleCTA  = "cta"

	KindImage = "image"
	KindClip  = "clip"

	MinScenes = 3
	MaxScenes = 6
)

// Scene is one narrative beat of the video. ID is the 1-based playback
// ordinal and is immutable once assigned.
type Scene struct {
	ID                int     `json:"id"`
	Role              string  `json:"role"`
	Narration         string  `json:"narration"`
	VisualPrompt      string  `json:"visual_prompt"`
	EstimatedDuration float64 `json:"estimated_duration"`
	AudioAsset        string  `json:"audio_asset,omitempty"`
	VisualAsset       string  `json:"visual_asset,omitempty"`
	VisualKind        string  `json:"visual_kind,omitempty"`
}

// Script is the ordered scene list plus planning metadata.
type Script struct {
	Title         string  `json:"title"`
	HookRationale string  `json:"hook_rationale"`
	Scenes        []Scene `json:"scenes"`
}

// ExpectedRole returns the role a scene at position i (0-based) must carry
// in a script of n scenes: first is hook, last is cta, interior is body.
func ExpectedRole(i, n int) string {
	switch {
	case i == 0:
		return RoleHook
	case i == n-1:
		return RoleCTA
	default:
		return RoleBody
	}
}

// Validate checks the script invariant: exactly wantScenes scenes, ordinal
// ids starting at 1, fixed first/last roles, and non-empty narration and
// visual prompt on every scene.
func (s *Script) Validate(wantScenes int) error {
	if wantScenes < MinScenes || wantScenes > MaxScenes {
		return fmt.Errorf("scene count %d out of range [%d,%d]", wantScenes, MinScenes, MaxScenes)
	}
	if s.Title == "" {
		return fmt.Errorf("script has no title")
	}
	if len(s.Scenes) != wantScenes {
		return fmt.Errorf("script has %d scenes, want %d", len(s.Scenes), wantScenes)
	}
	for i := range s.Scenes {
		sc := &s.Scenes[i]
		if sc.ID != i+1 {
			return fmt.Errorf("scene at position %d has id %d, want %d", i, sc.ID, i+1)
		}
		if want := ExpectedRole(i, len(s.Scenes)); sc.Role != want {
			return fmt.Errorf("scene %d has role %q, want %q", sc.ID, sc.Role, want)
		}
		if strings.TrimSpace(sc.Narration) == "" {
			return fmt.Errorf("scene %d has empty narration", sc.ID)
		}
		if strings.TrimSpace(sc.VisualPrompt) == "" {
			return fmt.Errorf("scene %d has empty visual prompt", sc.ID)
		}
	}
	return nil
}

// AssetValid reports whether path points to an existing, non-empty file.
// The path itself is the cache key; no content fingerprinting is done.
func AssetValid(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// AssetComplete reports whether the scene has both a valid audio and a
// valid visual asset on disk.
func (sc *Scene) AssetComplete() bool {
	return AssetValid(sc.AudioAsset) && AssetValid(sc.VisualAsset)
}

// AllAssetComplete reports whether every scene in the script is
// asset-complete.
func (s *Script) AllAssetComplete() bool {
	for i := range s.Scenes {
		if !s.Scenes[i].AssetComplete() {
			return false
		}
	}
	return true
}

// SceneByID returns the scene with the given id, or nil.
func (s *Script) SceneByID(id int) *Scene {
	for i := range s.Scenes {
		if s.Scenes[i].ID == id {
			return &s.Scenes[i]
		}
	}
	return nil
}

// AudioPath returns the deterministic narration file path for a scene.
func AudioPath(dir string, sceneID int) string {
	return filepath.Join(dir, fmt.Sprintf("scene_%d.mp3", sceneID))
}

// ImagePath returns the deterministic still-image path for a scene.
func ImagePath(dir string, sceneID int) string {
	return filepath.Join(dir, fmt.Sprintf("scene_%d.png", sceneID))
}

// ClipPath returns the deterministic generated-clip path for a scene.
func ClipPath(dir string, sceneID int) string {
	return filepath.Join(dir, fmt.Sprintf("scene_%d.mp4", sceneID))
}

// VisualPath returns the visual asset path for the given kind.
func VisualPath(dir string, sceneID int, kind string) string {
	if kind == KindClip {
		return ClipPath(dir, sceneID)
	}
	return ImagePath(dir, sceneID)
}

// CleanModelJSON strips markdown code fences and any prose surrounding the
// outermost JSON object from LLM output. Models routinely wrap JSON in
// ```json fences or add a leading sentence.
func CleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// Parse unmarshals raw LLM output into a Script and validates it against
// the requested scene count. Scenes with a zero id get their ordinal
// assigned; everything else must already satisfy the invariant. Invalid
// output is an error, never heuristically patched.
func Parse(raw string, wantScenes int) (*Script, error) {
	cleaned := CleanModelJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty script output")
	}

	var s Script
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return nil, fmt.Errorf("malformed script JSON: %w", err)
	}

	for i := range s.Scenes {
		if s.Scenes[i].ID == 0 {
			s.Scenes[i].ID = i + 1
		}
	}

	if err := s.Validate(wantScenes); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}
