package video

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Synthetic is the placeholder provider used when no API key is configured.
// Its output is derived from the request so repeated runs stay comparable.
type Synthetic struct {
	cdnBaseURL string
}

// NewSynthetic returns a provider that never calls out. Video refs are minted
// under cdnBaseURL.
func NewSynthetic(cdnBaseURL string) *Synthetic {
	return &Synthetic{
		cdnBaseURL: coalesce(cdnBaseURL, defaultCDNBaseURL),
	}
}

func (s *Synthetic) Name() string {
	return syntheticProviderName
}

// Enhance returns the prompt unchanged.
func (s *Synthetic) Enhance(ctx context.Context, prompt, style string) (string, error) {
	if err := ctx.Err(); err != nil {
		return prompt, err
	}
	return prompt, nil
}

func (s *Synthetic) GenerateFromText(ctx context.Context, params GenerateParams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	style := coalesce(params.Style, defaultStyle)
	seed := deterministicSeed(params.JobID, params.Prompt, style, params.Resolution)
	return &Result{
		VideoURL: videoURL(s.cdnBaseURL, seed),
		Metadata: map[string]any{
			"description":     fmt.Sprintf("Generated %s video: %s", style, params.Prompt),
			"scenes":          []string{"Scene 1: Opening shot", "Scene 2: Main action", "Scene 3: Closing"},
			"cameraMovements": []string{fmt.Sprintf("Camera %s quality", params.Resolution)},
			"visualEffects":   []string{styleLabel(style)},
			"mockGeneration":  true,
			"provider":        syntheticProviderName,
			"seed":            seed,
			"params":          paramsMetadata(params),
		},
	}, nil
}

func (s *Synthetic) GenerateFromImage(ctx context.Context, params ImageParams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	style := coalesce(params.Style, defaultImageStyle)
	seed := deterministicSeed(params.JobID, params.Prompt, params.SourceImageRef, style)
	meta := map[string]any{
		"animationPlan": "Animate image with: " + params.Prompt,
		"keyFrames": []map[string]any{
			{"frame": 0, "description": "Start"},
			{"frame": params.Duration, "description": "End"},
		},
		"motionVectors":  []string{"Forward motion"},
		"effects":        []string{styleLabel(style)},
		"mockGeneration": true,
		"provider":       syntheticProviderName,
		"seed":           seed,
		"params":         paramsMetadata(params.GenerateParams),
	}
	if params.SourceImageRef != "" {
		meta["sourceImageRef"] = params.SourceImageRef
	}
	return &Result{VideoURL: videoURL(s.cdnBaseURL, seed), Metadata: meta}, nil
}

// GenerateThumbnail always returns "" so the caller falls back to its placeholder.
func (s *Synthetic) GenerateThumbnail(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

// styleLabel builds a fresh Caser per call; Casers carry state.
func styleLabel(style string) string {
	return "Style: " + cases.Title(language.English).String(style)
}

var _ Provider = (*Synthetic)(nil)
