package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/appstate"
)

// trialDuration is how long a feature trial stays active after starting.
const trialDuration = 14 * 24 * time.Hour

func validFeature(key string) bool {
	for _, f := range appstate.AllFeatures {
		if f == key {
			return true
		}
	}
	return false
}

func (r *Router) appStatePayload() map[string]interface{} {
	caps := r.coordinator.CapabilitySet()
	setup := r.coordinator.Setup()

	features := make(map[string]bool, len(appstate.AllFeatures))
	for _, key := range appstate.AllFeatures {
		features[key] = r.coordinator.HasAccess(key)
	}

	return map[string]interface{}{
		"state":           r.coordinator.State(),
		"features":        features,
		"canReset":        caps.CanReset,
		"bypassesPaywall": caps.BypassesPaywall,
		"setup": map[string]interface{}{
			"completed":      setup.SetupCompleted,
			"companyName":    setup.CompanyName,
			"businessType":   setup.BusinessType,
			"businessSector": setup.BusinessSector,
		},
	}
}

// getAppState returns the memoized state, per-feature access and setup info
func (r *Router) getAppState(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// refreshAppState refetches the signal groups and re-derives the state
func (r *Router) refreshAppState(w http.ResponseWriter, req *http.Request) {
	r.coordinator.Refresh(req.Context())
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// SetupPatchRequest carries one onboarding field write.
type SetupPatchRequest struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// patchSetup persists one onboarding field
func (r *Router) patchSetup(w http.ResponseWriter, req *http.Request) {
	var patch SetupPatchRequest
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := r.coordinator.PersistSetupStep(req.Context(), patch.Field, patch.Value); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// completeSetup marks onboarding finished and moves out of SETUP_INCOMPLETE
func (r *Router) completeSetup(w http.ResponseWriter, req *http.Request) {
	if err := r.coordinator.PersistSetupStep(req.Context(), "setupCompleted", true); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.coordinator.TransitionTo(req.Context(), appstate.ActionCompleteSetup)
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// resetAppState wipes onboarding-derived state, admin preview only
func (r *Router) resetAppState(w http.ResponseWriter, req *http.Request) {
	if !r.coordinator.ResetToInstall(req.Context()) {
		respondError(w, http.StatusForbidden, "Reset is only permitted from admin preview")
		return
	}
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// FeatureRequest names the feature key a trial or purchase applies to.
type FeatureRequest struct {
	Feature string `json:"feature"`
}

// startTrial opens a trial window for one premium feature
func (r *Router) startTrial(w http.ResponseWriter, req *http.Request) {
	var body FeatureRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || !validFeature(body.Feature) {
		respondError(w, http.StatusBadRequest, "Unknown feature key")
		return
	}

	if err := r.provider.StartTrial(req.Context(), body.Feature, trialDuration); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	r.coordinator.TransitionTo(req.Context(), appstate.ActionStartTrial)
	respondJSON(w, http.StatusOK, r.appStatePayload())
}

// subscribe flips one paid-feature flag on
func (r *Router) subscribe(w http.ResponseWriter, req *http.Request) {
	var body FeatureRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || !validFeature(body.Feature) {
		respondError(w, http.StatusBadRequest, "Unknown feature key")
		return
	}

	if err := r.provider.SetPaidFeature(req.Context(), body.Feature); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.coordinator.TransitionTo(req.Context(), appstate.ActionSubscribe)
	respondJSON(w, http.StatusOK, r.appStatePayload())
}
