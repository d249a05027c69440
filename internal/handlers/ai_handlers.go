package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fieldfolio/fieldfoliogo/internal/utils"
)

// DraftRequest asks for a generated client-facing message.
type DraftRequest struct {
	Kind   string                 `json:"kind"`
	Fields map[string]interface{} `json:"fields"`
}

// draftMessage generates a short client-facing message (payment reminder,
// appointment confirmation, status update) with Gemini
func (r *Router) draftMessage(w http.ResponseWriter, req *http.Request) {
	if r.gemini == nil {
		respondError(w, http.StatusServiceUnavailable, "AI drafting is not configured")
		return
	}

	var body DraftRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if body.Fields == nil {
		body.Fields = map[string]interface{}{}
	}
	if _, ok := body.Fields["businessName"]; !ok {
		body.Fields["businessName"] = r.coordinator.Setup().CompanyName
	}

	text, err := r.gemini.DraftMessage(req.Context(), body.Kind, body.Fields)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"kind":  body.Kind,
		"draft": utils.StripCodeFences(text),
	})
}
