package api

import (
	"encoding/json"
	"net/http"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

type CampaignHandler struct {
	dispatcher Dispatcher
	reader     Reader
}

func NewCampaignHandler(dispatcher Dispatcher, reader Reader) *CampaignHandler {
	return &CampaignHandler{dispatcher: dispatcher, reader: reader}
}

type triggerRequest struct {
	CampaignID string `json:"campaignId"`
}

// Trigger resolves the campaign and fans its launch notification out over
// both channels, returning per-channel summaries.
func (h *CampaignHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CampaignID == "" {
		writeError(w, http.StatusBadRequest, "campaignId is required")
		return
	}

	campaign, err := h.reader.GetCampaign(r.Context(), req.CampaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if campaign == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}

	results, err := h.dispatcher.RunCampaign(r.Context(), campaign, models.CampaignJobLaunch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "campaign dispatch failed")
		return
	}

	writeOK(w, http.StatusOK, map[string]interface{}{
		"campaignId": campaign.ID,
		"results":    results,
	})
}
