package domain

import (
	"fmt"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindTextToVideo  JobKind = "text-to-video"
	JobKindImageToVideo JobKind = "image-to-video"
)

// Valid reports whether k is one of the supported kinds.
func (k JobKind) Valid() bool {
	return k == JobKindTextToVideo || k == JobKindImageToVideo
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusDraft:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to JobStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CameraControls captures optional camera direction for a generation.
type CameraControls struct {
	Movement string `json:"movement,omitempty"`
	Speed    string `json:"speed,omitempty"`
	Angle    string `json:"angle,omitempty"`
}

// Job is a video generation request and its outcome.
//
// VideoRef and ThumbnailRef are non-empty only when Status is completed, and
// Metadata["error"] is set only when Status is failed.
type Job struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"ownerId"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Kind           JobKind         `json:"kind"`
	Status         JobStatus       `json:"status"`
	Prompt         string          `json:"prompt"`
	SourceImageRef string          `json:"sourceImageRef,omitempty"`
	VideoRef       string          `json:"videoRef,omitempty"`
	ThumbnailRef   string          `json:"thumbnailRef,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Duration       int             `json:"duration"`
	Resolution     string          `json:"resolution"`
	Style          string          `json:"style,omitempty"`
	Effects        []string        `json:"effects"`
	CameraControls *CameraControls `json:"cameraControls,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ErrorMessage returns the failure message recorded in the job metadata.
func (j *Job) ErrorMessage() string {
	if j == nil || j.Metadata == nil {
		return ""
	}
	msg, _ := j.Metadata[MetadataErrorKey].(string)
	return msg
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Effects != nil {
		cp.Effects = append([]string(nil), j.Effects...)
	}
	if j.CameraControls != nil {
		cc := *j.CameraControls
		cp.CameraControls = &cc
	}
	if j.Metadata != nil {
		cp.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// MetadataErrorKey is the metadata field holding the failure message.
const MetadataErrorKey = "error"

// JobResult is the terminal outcome written once by the orchestrator.
type JobResult struct {
	Status       JobStatus
	VideoRef     string
	ThumbnailRef string
	Metadata     map[string]any
}

// Validate checks the terminal-state invariants before persistence.
func (r JobResult) Validate() error {
	switch r.Status {
	case JobStatusCompleted:
		if r.VideoRef == "" || r.ThumbnailRef == "" {
			return fmt.Errorf("%w: completed result requires video and thumbnail refs", ErrInvalidResult)
		}
		if _, ok := r.Metadata[MetadataErrorKey]; ok {
			return fmt.Errorf("%w: completed result carries an error", ErrInvalidResult)
		}
	case JobStatusFailed:
		if r.VideoRef != "" || r.ThumbnailRef != "" {
			return fmt.Errorf("%w: failed result carries refs", ErrInvalidResult)
		}
		if msg, _ := r.Metadata[MetadataErrorKey].(string); msg == "" {
			return fmt.Errorf("%w: failed result requires an error message", ErrInvalidResult)
		}
	default:
		return fmt.Errorf("%w: status %q is not terminal", ErrInvalidResult, r.Status)
	}
	return nil
}

// Apply writes the result onto job. The caller is responsible for checking the transition.
func (r JobResult) Apply(job *Job, now time.Time) {
	job.Status = r.Status
	job.VideoRef = r.VideoRef
	job.ThumbnailRef = r.ThumbnailRef
	job.Metadata = r.Metadata
	job.UpdatedAt = now
}

// JobPatch holds the user-editable fields of a job.
type JobPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
