package domain

// Template is a preset combination of prompt, style, effects and camera work.
type Template struct {
	ID                    string          `json:"id" yaml:"id"`
	Name                  string          `json:"name" yaml:"name"`
	Description           string          `json:"description,omitempty" yaml:"description"`
	Category              string          `json:"category" yaml:"category"`
	ThumbnailURL          string          `json:"thumbnailUrl,omitempty" yaml:"thumbnail_url"`
	PreviewVideoURL       string          `json:"previewVideoUrl,omitempty" yaml:"preview_video_url"`
	DefaultPrompt         string          `json:"defaultPrompt,omitempty" yaml:"default_prompt"`
	DefaultStyle          string          `json:"defaultStyle,omitempty" yaml:"default_style"`
	DefaultEffects        []string        `json:"defaultEffects" yaml:"default_effects"`
	DefaultCameraControls *CameraControls `json:"defaultCameraControls,omitempty" yaml:"default_camera_controls"`
	PopularityScore       int             `json:"popularityScore" yaml:"popularity_score"`
}

// Effect is a named visual effect that can be applied to a generation.
type Effect struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	DisplayName     string `json:"displayName" yaml:"display_name"`
	Description     string `json:"description,omitempty" yaml:"description"`
	Category        string `json:"category" yaml:"category"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty" yaml:"thumbnail_url"`
	PreviewVideoURL string `json:"previewVideoUrl,omitempty" yaml:"preview_video_url"`
	Trending        bool   `json:"isTrending" yaml:"trending"`
	UsageCount      int64  `json:"usageCount" yaml:"usage_count"`
}
