package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/zoarius/winastreamv4/internal/models"
)

const (
	defaultWinnerLimit = 20
	maxWinnerLimit     = 100
)

// WinnerService is the append-only registry of completed draws. Records are
// never updated or deleted; observers read a bounded recent slice.
type WinnerService struct {
	db *sql.DB
}

func NewWinnerService(db *sql.DB) *WinnerService {
	return &WinnerService{db: db}
}

// Record appends one winner row. Assigns the row id when unset.
func (s *WinnerService) Record(ctx context.Context, w *models.Winner) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO winners (id, participant_id, campaign_id, cycle, platform, months, country, draw_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		w.ID, w.ParticipantID, w.CampaignID, w.Cycle, w.Platform, w.Months, w.Country, w.DrawDate)
	return err
}

// ExistsForCycle reports whether a winner was already recorded for the
// campaign's given draw cycle.
func (s *WinnerService) ExistsForCycle(ctx context.Context, campaignID string, cycle int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM winners
			WHERE campaign_id = $1 AND cycle = $2
		)`, campaignID, cycle).Scan(&exists)
	return exists, err
}

// Recent returns the latest winners, newest first, capped at limit.
func (s *WinnerService) Recent(ctx context.Context, limit int) ([]models.Winner, error) {
	if limit <= 0 {
		limit = defaultWinnerLimit
	}
	if limit > maxWinnerLimit {
		limit = maxWinnerLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, campaign_id, platform, months, country, draw_date, created_at
		FROM winners
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	winners := []models.Winner{}
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.ID, &w.ParticipantID, &w.CampaignID, &w.Platform, &w.Months, &w.Country, &w.DrawDate, &w.CreatedAt); err != nil {
			return nil, err
		}
		winners = append(winners, w)
	}
	return winners, rows.Err()
}

// ListWinners handles the winner history read view
// @Summary List recent winners
// @Description Get the most recent draw winners, newest first
// @Tags winners
// @Produce json
// @Param limit query int false "Number of winners to return (default: 20, max: 100)"
// @Success 200 {object} object{winners=[]models.Winner,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /winners [get]
func (s *WinnerService) ListWinners(w http.ResponseWriter, r *http.Request) {
	limit := defaultWinnerLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	winners, err := s.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[WINNERS] Failed to fetch winners: %v", err)
		SendErrorResponse(w, "Failed to fetch winners", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"winners": winners,
		"count":   len(winners),
	})
}
