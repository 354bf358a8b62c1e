// Package assembly builds the final vertical video from a fully-populated
// scene list: per-scene segments timed by the narration audio's real
// duration, caption overlays, concatenation, and an optional background
// track mixed under the narration.
package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/script"
)

// audioTailBuffer keeps each scene on screen briefly after its narration
// ends so cuts do not feel clipped.
const audioTailBuffer = 0.2

// Assembler produces the final artifact from an ordered, asset-complete
// scene list. Returns the total duration in seconds.
type Assembler interface {
	Assemble(ctx context.Context, scenes []script.Scene, musicPath, outPath string) (float64, error)
}

// FFmpegAssembler drives ffmpeg for segment rendering, concatenation, and
// audio mixing.
type FFmpegAssembler struct {
	profile config.Profile
	logger  *slog.Logger

	// injectable for tests; defaults to ffprobe
	probe func(path string) (float64, error)
}

func New(profile config.Profile, logger *slog.Logger) *FFmpegAssembler {
	return &FFmpegAssembler{
		profile: profile,
		logger:  logger,
		probe:   probeDuration,
	}
}

// Assemble renders each scene into a segment, concatenates the segments,
// and mixes in the background track when one is configured. Scene screen
// time comes from the generated audio's real duration, never from the
// advisory estimate. Completeness of the scene list is the caller's
// contract; it is not re-validated here.
func (a *FFmpegAssembler) Assemble(ctx context.Context, scenes []script.Scene, musicPath, outPath string) (float64, error) {
	if len(scenes) == 0 {
		return 0, fmt.Errorf("nothing to assemble")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "clipforge-assemble-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var total float64
	segments := make([]string, 0, len(scenes))

	for i := range scenes {
		sc := &scenes[i]
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		dur, err := a.probe(sc.AudioAsset)
		if err != nil {
			return 0, fmt.Errorf("failed to probe scene %d audio: %w", sc.ID, err)
		}
		dur += audioTailBuffer

		segPath := filepath.Join(tmpDir, fmt.Sprintf("seg_%d.mp4", sc.ID))
		if err := a.renderSegment(sc, dur, segPath); err != nil {
			return 0, fmt.Errorf("failed to render scene %d: %w", sc.ID, err)
		}

		segments = append(segments, segPath)
		total += dur

		if a.logger != nil {
			a.logger.Info("scene segment rendered", "scene", sc.ID, "duration_s", dur)
		}
	}

	listPath := filepath.Join(tmpDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0644); err != nil {
		return 0, fmt.Errorf("failed to write concat list: %w", err)
	}

	concatTarget := outPath
	if musicPath != "" {
		concatTarget = filepath.Join(tmpDir, "combined.mp4")
	}

	err = ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(concatTarget, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().Run()
	if err != nil {
		return 0, fmt.Errorf("concat failed: %w", err)
	}

	if musicPath != "" {
		if err := a.mixMusic(concatTarget, musicPath, outPath); err != nil {
			return 0, err
		}
	}

	if !script.AssetValid(outPath) {
		return 0, fmt.Errorf("assembly produced no output at %s", logging.SanitizePath(outPath))
	}

	if a.logger != nil {
		a.logger.Info("final video assembled",
			"scenes", len(scenes),
			"duration_s", total,
			"path", logging.SanitizePath(outPath),
		)
	}
	return total, nil
}

// renderSegment turns one scene into an encoded segment: the visual sized
// to the profile frame, a slow zoom for stills, the narration caption, and
// the scene audio.
func (a *FFmpegAssembler) renderSegment(sc *script.Scene, dur float64, segPath string) error {
	w, h := a.profile.Width, a.profile.Height
	fps := a.profile.FPS

	var visual *ffmpeg.Stream
	if sc.VisualKind == script.KindClip {
		// Loop short clips out to the narration length, trim long ones.
		visual = ffmpeg.Input(sc.VisualAsset, ffmpeg.KwArgs{
			"stream_loop": -1,
			"t":           fmt.Sprintf("%.3f", dur),
		})
		visual = visual.
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", w, h)}).
			Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)})
	} else {
		frames := int(dur * float64(fps))
		if frames < 1 {
			frames = 1
		}
		visual = ffmpeg.Input(sc.VisualAsset, ffmpeg.KwArgs{
			"loop":      1,
			"t":         fmt.Sprintf("%.3f", dur),
			"framerate": fps,
		})
		visual = visual.
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", w, h)}).
			Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)}).
			Filter("zoompan", ffmpeg.Args{
				fmt.Sprintf("z='min(zoom+0.0002,1.02)':d=%d:s=%dx%d:fps=%d", frames, w, h, fps),
			})
	}

	visual = visual.Filter("drawtext", ffmpeg.Args{captionArgs(sc.Narration, h)})

	audio := ffmpeg.Input(sc.AudioAsset)

	return ffmpeg.Output([]*ffmpeg.Stream{visual, audio}, segPath, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"c:a":      "aac",
		"b:a":      "192k",
		"pix_fmt":  "yuv420p",
		"r":        fps,
		"t":        fmt.Sprintf("%.3f", dur),
		"preset":   "medium",
		"shortest": "",
	}).OverWriteOutput().Run()
}

// mixMusic loops or trims the background track to the video length and
// mixes it under the narration at the profile's fixed attenuation.
func (a *FFmpegAssembler) mixMusic(videoPath, musicPath, outPath string) error {
	video := ffmpeg.Input(videoPath)
	music := ffmpeg.Input(musicPath, ffmpeg.KwArgs{"stream_loop": -1}).
		Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", a.profile.MusicVolume)})

	mixed := ffmpeg.Filter(
		[]*ffmpeg.Stream{video.Audio(), music},
		"amix",
		ffmpeg.Args{"inputs=2:duration=first:dropout_transition=0"},
	)

	err := ffmpeg.Output([]*ffmpeg.Stream{video.Video(), mixed}, outPath, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      "aac",
		"b:a":      "192k",
		"shortest": "",
	}).OverWriteOutput().Run()
	if err != nil {
		return fmt.Errorf("music mix failed: %w", err)
	}
	return nil
}

// probeDuration reads a media file's duration via ffprobe.
func probeDuration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, err
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(probeJSON string) (float64, error) {
	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(probeJSON), &parsed); err != nil {
		return 0, fmt.Errorf("malformed probe output: %w", err)
	}
	if parsed.Format.Duration == "" {
		return 0, fmt.Errorf("probe output carried no duration")
	}
	dur, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid probe duration %q: %w", parsed.Format.Duration, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("non-positive probe duration %g", dur)
	}
	return dur, nil
}

// captionArgs builds the drawtext argument string for a narration caption
// centred in the lower third of the frame.
func captionArgs(narration string, frameHeight int) string {
	y := int(float64(frameHeight) * 0.78)
	return fmt.Sprintf(
		"text='%s':fontsize=54:fontcolor=white:borderw=3:bordercolor=black:x=(w-text_w)/2:y=%d",
		escapeDrawtext(narration), y,
	)
}

// escapeDrawtext escapes the characters drawtext treats specially.
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}

func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	return b.String()
}
