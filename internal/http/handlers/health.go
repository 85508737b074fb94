package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	provider := ""
	if a.Provider != nil {
		provider = a.Provider.Name()
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "provider": provider})
}
