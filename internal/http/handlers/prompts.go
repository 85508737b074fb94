package handlers

import (
	"net/http"
	"strings"
)

type enhancePromptRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

type enhancePromptResponse struct {
	Enhanced string `json:"enhanced"`
}

// EnhancePrompt never fails on provider trouble; it echoes the prompt instead.
func (a *App) EnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req enhancePromptRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	enhanced, err := a.Provider.Enhance(r.Context(), prompt, strings.TrimSpace(req.Style))
	if err != nil || strings.TrimSpace(enhanced) == "" {
		if err != nil {
			a.Logger.Warn().Err(err).Msg("enhance prompt")
		}
		enhanced = prompt
	}
	a.json(w, http.StatusOK, enhancePromptResponse{Enhanced: strings.TrimSpace(enhanced)})
}
