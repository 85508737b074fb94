package video

import (
	"context"

	"github.com/SkelleTu/UltraPix/internal/domain"
)

// GenerateParams describes a text-to-video generation.
type GenerateParams struct {
	JobID          string
	Prompt         string
	Duration       int
	Resolution     string
	Style          string
	Effects        []string
	CameraControls *domain.CameraControls
}

// ImageParams describes an image-to-video generation. SourceImageRef may be empty.
type ImageParams struct {
	GenerateParams
	SourceImageRef string
}

// Result is what a provider hands back for a generation. VideoURL may be
// empty, in which case the caller substitutes its own fallback reference.
type Result struct {
	VideoURL string
	Metadata map[string]any
}

// Provider is the slow, fallible generation backend.
//
// Enhance and GenerateThumbnail degrade instead of failing: Enhance returns the
// input prompt and GenerateThumbnail returns "" when the backend is unusable.
// The Generate calls return an error wrapping domain.ErrProviderFailure.
type Provider interface {
	Name() string
	Enhance(ctx context.Context, prompt, style string) (string, error)
	GenerateFromText(ctx context.Context, params GenerateParams) (*Result, error)
	GenerateFromImage(ctx context.Context, params ImageParams) (*Result, error)
	GenerateThumbnail(ctx context.Context, prompt string) (string, error)
}

func paramsMetadata(p GenerateParams) map[string]any {
	out := map[string]any{
		"prompt":     p.Prompt,
		"duration":   p.Duration,
		"resolution": p.Resolution,
	}
	if p.Style != "" {
		out["style"] = p.Style
	}
	if len(p.Effects) > 0 {
		out["effects"] = append([]string(nil), p.Effects...)
	}
	if p.CameraControls != nil {
		out["cameraControls"] = *p.CameraControls
	}
	return out
}
