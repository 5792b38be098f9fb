package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zoarius/winastreamv4/internal/config"
	"github.com/zoarius/winastreamv4/internal/database"
	"github.com/zoarius/winastreamv4/internal/middleware"
	"github.com/zoarius/winastreamv4/internal/models"
)

// ParticipationService records sweepstakes entries. Every submission runs as
// one serializable transaction across the campaign counter, the entry ledger
// and the participant's credit balance, so concurrent submissions never lose
// an increment and a credit is never debited without its entry.
type ParticipationService struct {
	db       *sql.DB
	draws    *DrawService
	notifier *RedisNotifier
	cfg      *config.SweepstakesConfig
}

func NewParticipationService(db *sql.DB, draws *DrawService, notifier *RedisNotifier, cfg *config.SweepstakesConfig) *ParticipationService {
	return &ParticipationService{
		db:       db,
		draws:    draws,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Submit validates and applies one participation atomically. On success the
// returned entry reflects the committed counters. Validation failures are
// terminal; conflict-retry exhaustion surfaces as ErrServiceUnavailable.
func (s *ParticipationService) Submit(ctx context.Context, campaignID, participantID string, useCredit bool) (*models.Entry, error) {
	var committed models.Entry

	err := database.RunSerializable(ctx, s.db, s.cfg.TxMaxRetries, s.cfg.TxRetryBackoff, func(tx *sql.Tx) error {
		entry, err := s.submitTx(tx, campaignID, participantID, useCredit)
		if err != nil {
			return err
		}
		committed = *entry
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrRetriesExhausted) {
			log.Printf("[PARTICIPATION] Conflict retries exhausted for %s/%s: %v", campaignID, participantID, err)
			return nil, ErrServiceUnavailable
		}
		return nil, err
	}

	s.notifier.PublishCampaignUpdate(ctx, campaignID)
	return &committed, nil
}

// submitTx performs the single atomic unit: campaign read, entry read,
// credit checks and debit, entry upsert, campaign increment.
func (s *ParticipationService) submitTx(tx *sql.Tx, campaignID, participantID string, useCredit bool) (*models.Entry, error) {
	var campaign models.Campaign
	err := tx.QueryRow(`
		SELECT campaign_id, platform, title, goal, count, state
		FROM campaigns
		WHERE campaign_id = $1`, campaignID).
		Scan(&campaign.ID, &campaign.Platform, &campaign.Title, &campaign.Goal, &campaign.Count, &campaign.State)
	if err == sql.ErrNoRows {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	entry := models.Entry{CampaignID: campaignID, ParticipantID: participantID}
	err = tx.QueryRow(`
		SELECT count, credit_count, created_at
		FROM entries
		WHERE campaign_id = $1 AND participant_id = $2`, campaignID, participantID).
		Scan(&entry.Count, &entry.CreditCount, &entry.CreatedAt)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if exists {
		if err := entry.Validate(); err != nil {
			return nil, err
		}
	}

	if useCredit {
		// Limit check runs before the balance check so a participant at the
		// cap sees the limit error even with zero credits left.
		if entry.CreditCount >= models.MaxCreditEntries {
			return nil, ErrCreditLimitReached
		}

		var credits int64
		err := tx.QueryRow(`SELECT credits FROM accounts WHERE participant_id = $1`, participantID).Scan(&credits)
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientCredits
		}
		if err != nil {
			return nil, err
		}
		if credits < 1 {
			return nil, ErrInsufficientCredits
		}

		result, err := tx.Exec(`
			UPDATE accounts
			SET credits = credits - 1, updated_at = NOW()
			WHERE participant_id = $1 AND credits >= 1`, participantID)
		if err != nil {
			return nil, err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return nil, ErrInsufficientCredits
		}
	}

	creditInc := int64(0)
	if useCredit {
		creditInc = 1
	}

	if exists {
		_, err = tx.Exec(`
			UPDATE entries
			SET count = count + 1, credit_count = credit_count + $3
			WHERE campaign_id = $1 AND participant_id = $2`,
			campaignID, participantID, creditInc)
	} else {
		entry.CreatedAt = time.Now()
		_, err = tx.Exec(`
			INSERT INTO entries (campaign_id, participant_id, count, credit_count, created_at)
			VALUES ($1, $2, 1, $3, $4)`,
			campaignID, participantID, creditInc, entry.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	entry.Count++
	entry.CreditCount += creditInc

	if _, err := tx.Exec(`
		UPDATE campaigns
		SET count = count + 1, updated_at = NOW()
		WHERE campaign_id = $1`, campaignID); err != nil {
		return nil, err
	}

	return &entry, nil
}

// SubmitEntry handles participation requests
// @Summary Submit a sweepstakes entry
// @Description Record one entry for the calling participant, optionally funded by a credit
// @Tags campaigns
// @Accept json
// @Produce json
// @Param campaignId path string true "Campaign ID"
// @Param entry body object{useCredit=bool} false "Entry options"
// @Success 201 {object} models.Entry
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /campaigns/{campaignId}/entries [post]
func (s *ParticipationService) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	participantID, ok := r.Context().Value(middleware.ParticipantIDKey).(string)
	if !ok || participantID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	campaignID := chi.URLParam(r, "campaignId")
	if campaignID == "" {
		SendErrorResponse(w, "campaignId is required", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		UseCredit bool `json:"useCredit"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	entry, err := s.Submit(r.Context(), campaignID, participantID, req.UseCredit)
	if err != nil {
		status, message := submissionErrorStatus(err)
		log.Printf("[PARTICIPATION] Submit failed for %s/%s (credit=%v): %v", campaignID, participantID, req.UseCredit, err)
		SendErrorResponse(w, message, status, nil)
		return
	}

	// Post-commit goal check. Best effort: any concurrent caller may run it,
	// the claim inside CheckAndDraw keeps the draw exactly-once.
	drawn, err := s.draws.CheckAndDraw(r.Context(), campaignID)
	if err != nil {
		log.Printf("[PARTICIPATION] Draw attempt after submit failed for %s: %v", campaignID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"entry":         entry,
		"drawTriggered": drawn,
	})
}

func submissionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return http.StatusNotFound, "Campaign not found"
	case errors.Is(err, ErrInsufficientCredits):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, ErrCreditLimitReached):
		return http.StatusConflict, "Credit limit reached for this campaign"
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "Please try again"
	default:
		return http.StatusInternalServerError, "Failed to record participation"
	}
}
