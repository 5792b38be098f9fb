package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zoarius/winastreamv4/internal/middleware"
	"github.com/zoarius/winastreamv4/internal/services"
)

// CampaignHandler exposes the campaign read views over HTTP.
type CampaignHandler struct {
	service *services.CampaignService
}

func NewCampaignHandler(service *services.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ListCampaigns lists all campaigns
// @Summary List campaigns
// @Description Get every campaign with its goal and running count
// @Tags campaigns
// @Produce json
// @Success 200 {object} object{campaigns=[]models.Campaign,count=int}
// @Failure 500 {object} services.ErrorResponse
// @Router /campaigns [get]
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.service.List(r.Context())
	if err != nil {
		log.Printf("[CAMPAIGN] List failed: %v", err)
		services.SendErrorResponse(w, "Failed to fetch campaigns", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// GetCampaign fetches one campaign
// @Summary Get campaign by ID
// @Tags campaigns
// @Produce json
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} models.Campaign
// @Failure 404 {object} services.ErrorResponse
// @Router /campaigns/{campaignId} [get]
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")

	campaign, err := h.service.Get(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotFound) {
			services.SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[CAMPAIGN] Fetch failed for %s: %v", campaignID, err)
		services.SendErrorResponse(w, "Failed to fetch campaign", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

// GetMyEntry returns the caller's entry record for a campaign
// @Summary Get own entry record
// @Description Retrieve the calling participant's entry counters for a campaign; absent records read as zero
// @Tags campaigns
// @Produce json
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} models.Entry
// @Failure 404 {object} services.ErrorResponse
// @Router /campaigns/{campaignId}/entries/me [get]
func (h *CampaignHandler) GetMyEntry(w http.ResponseWriter, r *http.Request) {
	participantID, ok := r.Context().Value(middleware.ParticipantIDKey).(string)
	if !ok || participantID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	campaignID := chi.URLParam(r, "campaignId")
	entry, err := h.service.GetEntry(r.Context(), campaignID, participantID)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotFound) {
			services.SendErrorResponse(w, "Campaign not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[CAMPAIGN] Entry fetch failed for %s/%s: %v", campaignID, participantID, err)
		services.SendErrorResponse(w, "Failed to fetch entry", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}
