package handlers

import "net/http"

// ProgressSocket upgrades to the progress stream. It is unauthenticated and
// carries events for every job.
func (a *App) ProgressSocket(w http.ResponseWriter, r *http.Request) {
	if a.Progress == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "progress stream disabled")
		return
	}
	a.Progress.ServeHTTP(w, r)
}
