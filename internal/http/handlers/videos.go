package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/orchestrator"
)

// VideosGenerate validates the request and starts a job. The response is the
// processing job record; progress follows on the progress socket.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req domain.GenerateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Orchestrator.StartJob(r.Context(), req, userID)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			a.validationError(w, verr)
		case errors.Is(err, domain.ErrInvalidRequest):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrUnauthorized):
			a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		case errors.Is(err, orchestrator.ErrShuttingDown):
			a.error(w, http.StatusServiceUnavailable, "unavailable", "server is shutting down")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("start job")
			a.error(w, http.StatusInternalServerError, "internal", "failed to generate video")
		}
		return
	}
	a.json(w, http.StatusAccepted, job)
}

func (a *App) VideosList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Jobs.ListByOwner(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("list videos")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch videos")
		return
	}
	a.json(w, http.StatusOK, jobs)
}

func (a *App) VideoGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Jobs.GetForOwner(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.jobLookupError(w, err, "fetch video")
		return
	}
	a.json(w, http.StatusOK, job)
}

// VideoUpdate edits title and description. Any other field is rejected; the
// status and result fields belong to the orchestrator.
func (a *App) VideoUpdate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var patch domain.JobPatch
	if err := decodeJSON(w, r, &patch, true); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "only title and description can be changed")
		return
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			a.validationError(w, &domain.ValidationError{Fields: map[string]string{"title": "must not be empty"}})
			return
		}
		patch.Title = &title
	}
	job, err := a.Jobs.UpdateDetails(r.Context(), chi.URLParam(r, "id"), userID, patch)
	if err != nil {
		a.jobLookupError(w, err, "update video")
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) VideoDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Jobs.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		a.jobLookupError(w, err, "delete video")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) jobLookupError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "video not found")
		return
	}
	a.Logger.Error().Err(err).Msg(action)
	a.error(w, http.StatusInternalServerError, "internal", "failed to "+action)
}
