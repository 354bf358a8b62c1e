package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the creative generation settings for a production run.
// Unlike EnvConfig these are content knobs, not deployment knobs, so they
// live in a YAML file an editor can tweak without touching the environment.
type Profile struct {
	Voice           string  `yaml:"voice"`
	StyleSuffix     string  `yaml:"style_suffix"`
	SceneCount      int     `yaml:"scene_count"`
	AspectRatio     string  `yaml:"aspect_ratio"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	FPS             int     `yaml:"fps"`
	MusicVolume     float64 `yaml:"music_volume"`
	BackgroundTrack string  `yaml:"background_track"`
}

// DefaultProfile returns the profile used when no YAML file is present.
func DefaultProfile() Profile {
	return Profile{
		Voice:       "aura-asteria-en",
		StyleSuffix: "cinematic lighting, vertical composition, high detail, no text, no watermark",
		SceneCount:  5,
		AspectRatio: "9:16",
		Width:       1080,
		Height:      1920,
		FPS:         24,
		MusicVolume: 0.15,
	}
}

// LoadProfile reads the generation profile from path, filling any omitted
// fields with defaults. A missing file is not an error.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks the profile for values the pipeline cannot work with.
func (p Profile) Validate() error {
	if p.SceneCount < 3 || p.SceneCount > 6 {
		return fmt.Errorf("profile scene_count must be between 3 and 6, got %d", p.SceneCount)
	}
	if p.MusicVolume < 0 || p.MusicVolume > 1 {
		return fmt.Errorf("profile music_volume must be between 0 and 1, got %g", p.MusicVolume)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("profile dimensions must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.FPS <= 0 {
		return fmt.Errorf("profile fps must be positive, got %d", p.FPS)
	}
	return nil
}
