package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (a *App) TemplatesList(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	a.json(w, http.StatusOK, a.Catalog.Templates(category))
}

func (a *App) TemplateGet(w http.ResponseWriter, r *http.Request) {
	t, err := a.Catalog.Template(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "template not found")
		return
	}
	a.json(w, http.StatusOK, t)
}

// EffectsList serves ?trending=true, ?category=<name>, or everything.
func (a *App) EffectsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("trending") == "true" {
		a.json(w, http.StatusOK, a.Catalog.TrendingEffects())
		return
	}
	a.json(w, http.StatusOK, a.Catalog.Effects(strings.TrimSpace(q.Get("category"))))
}

func (a *App) EffectGet(w http.ResponseWriter, r *http.Request) {
	e, err := a.Catalog.Effect(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "effect not found")
		return
	}
	a.json(w, http.StatusOK, e)
}
