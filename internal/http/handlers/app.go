package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/middleware"
	"github.com/SkelleTu/UltraPix/internal/providers/video"
)

// JobStarter begins a generation job and returns its initial record.
type JobStarter interface {
	StartJob(ctx context.Context, req domain.GenerateRequest, ownerID string) (*domain.Job, error)
}

type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	Jobs         domain.JobRepository
	Orchestrator JobStarter
	Provider     video.Provider
	Catalog      domain.CatalogRepository
	Progress     http.Handler
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func (a *App) validationError(w http.ResponseWriter, verr *domain.ValidationError) {
	a.json(w, http.StatusBadRequest, map[string]errorBody{"error": {
		Code:    "validation_failed",
		Message: "invalid request",
		Details: verr.Fields,
	}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(dst)
}
