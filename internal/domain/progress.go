package domain

// Stage names a step of the generation pipeline as seen by subscribers.
type Stage string

const (
	StageEnhancing   Stage = "enhancing"
	StageGenerating  Stage = "generating"
	StageCompositing Stage = "compositing"
	StageFinalizing  Stage = "finalizing"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// Terminal reports whether s ends a job's event stream.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ProgressEvent is an ephemeral notification; it is never persisted.
type ProgressEvent struct {
	JobID    string `json:"jobId"`
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// CompletionEvent carries the final references of a completed job.
type CompletionEvent struct {
	JobID        string `json:"jobId"`
	VideoRef     string `json:"videoRef"`
	ThumbnailRef string `json:"thumbnailRef"`
}

// FailureEvent carries the failure message of a failed job.
type FailureEvent struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}
