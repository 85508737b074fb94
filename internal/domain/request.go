package domain

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	MinPromptLength   = 10
	MinDuration       = 3
	MaxDuration       = 60
	DefaultDuration   = 5
	DefaultResolution = "1080p"
)

var (
	resolutions  = []string{"720p", "1080p", "4K"}
	styles       = []string{"cinematic", "anime", "realistic", "artistic"}
	cameraMoves  = []string{"static", "pan", "zoom", "orbit"}
	cameraSpeeds = []string{"slow", "normal", "fast"}
)

// GenerateRequest is the payload accepted by the generation-start endpoint.
type GenerateRequest struct {
	Kind           JobKind         `json:"kind"`
	Type           JobKind         `json:"type,omitempty"`
	Prompt         string          `json:"prompt"`
	Title          string          `json:"title,omitempty"`
	Description    string          `json:"description,omitempty"`
	SourceImageRef string          `json:"sourceImageRef,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`
	Duration       *int            `json:"duration,omitempty"`
	Style          string          `json:"style,omitempty"`
	Effects        []string        `json:"effects,omitempty"`
	CameraControls *CameraControls `json:"cameraControls,omitempty"`

	// length of the prompt as submitted, before trimming
	rawPromptLen int
}

// Normalize trims input and applies defaults in place.
func (r *GenerateRequest) Normalize() {
	if r.Kind == "" {
		r.Kind = r.Type
	}
	r.Type = ""
	r.rawPromptLen = utf8.RuneCountInString(r.Prompt)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.SourceImageRef = strings.TrimSpace(r.SourceImageRef)
	r.Style = strings.TrimSpace(r.Style)
	if strings.TrimSpace(r.Resolution) == "" {
		r.Resolution = DefaultResolution
	}
	if r.Duration == nil {
		d := DefaultDuration
		r.Duration = &d
	}
	if r.Effects == nil {
		r.Effects = []string{}
	}
}

// Validate reports every field that violates the request constraints.
// The minimum prompt length counts the prompt as submitted, surrounding
// whitespace included, but a blank prompt is always rejected. A missing
// source image for image-to-video is accepted.
func (r *GenerateRequest) Validate() error {
	verr := &ValidationError{}
	if !r.Kind.Valid() {
		verr.add("kind", "must be one of text-to-video, image-to-video")
	}
	promptLen := max(r.rawPromptLen, utf8.RuneCountInString(r.Prompt))
	switch {
	case strings.TrimSpace(r.Prompt) == "":
		verr.add("prompt", "is required")
	case promptLen < MinPromptLength:
		verr.add("prompt", fmt.Sprintf("must be at least %d characters", MinPromptLength))
	}
	if !oneOf(r.Resolution, resolutions) {
		verr.add("resolution", "must be one of "+strings.Join(resolutions, ", "))
	}
	if r.Duration != nil && (*r.Duration < MinDuration || *r.Duration > MaxDuration) {
		verr.add("duration", fmt.Sprintf("must be between %d and %d", MinDuration, MaxDuration))
	}
	if r.Style != "" && !oneOf(r.Style, styles) {
		verr.add("style", "must be one of "+strings.Join(styles, ", "))
	}
	if cc := r.CameraControls; cc != nil {
		if cc.Movement != "" && !oneOf(cc.Movement, cameraMoves) {
			verr.add("cameraControls.movement", "must be one of "+strings.Join(cameraMoves, ", "))
		}
		if cc.Speed != "" && !oneOf(cc.Speed, cameraSpeeds) {
			verr.add("cameraControls.speed", "must be one of "+strings.Join(cameraSpeeds, ", "))
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// DurationSeconds returns the requested duration, or the default when unset.
func (r *GenerateRequest) DurationSeconds() int {
	if r.Duration == nil {
		return DefaultDuration
	}
	return *r.Duration
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ValidationError lists offending fields; it matches ErrInvalidRequest.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
