package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/zoarius/winastreamv4/internal/config"
	"github.com/zoarius/winastreamv4/internal/models"
)

// CampaignService serves the campaign and entry read views. All campaign
// mutation goes through ParticipationService (increment) and DrawService
// (claim and reset); this service is read-only apart from startup seeding.
type CampaignService struct {
	db  *sql.DB
	cfg *config.SweepstakesConfig
}

func NewCampaignService(db *sql.DB, cfg *config.SweepstakesConfig) *CampaignService {
	return &CampaignService{db: db, cfg: cfg}
}

// SeedCampaigns upserts one open campaign per configured platform so a fresh
// database serves the fixed lineup. Existing rows are left untouched.
func (s *CampaignService) SeedCampaigns(ctx context.Context) error {
	for _, platform := range s.cfg.SeedPlatforms {
		label, ok := config.PlatformLabels[platform]
		if !ok {
			return fmt.Errorf("unknown platform %q in seed list", platform)
		}

		result, err := s.db.ExecContext(ctx, `
			INSERT INTO campaigns (campaign_id, platform, title, goal, count, state, cycle, updated_at)
			VALUES ($1, $1, $2, $3, 0, $4, 1, NOW())
			ON CONFLICT (campaign_id) DO NOTHING`,
			platform, fmt.Sprintf("%s Subscription", label), s.cfg.DefaultGoal, models.CampaignStateOpen)
		if err != nil {
			return fmt.Errorf("seeding campaign %s: %w", platform, err)
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			log.Printf("[CAMPAIGN] Seeded campaign %s (goal %d)", platform, s.cfg.DefaultGoal)
		}
	}
	return nil
}

// List returns all campaigns ordered by platform.
func (s *CampaignService) List(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, platform, title, goal, count, state, cycle, updated_at
		FROM campaigns
		ORDER BY platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Platform, &c.Title, &c.Goal, &c.Count, &c.State, &c.Cycle, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Get returns a single campaign by id.
func (s *CampaignService) Get(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.QueryRowContext(ctx, `
		SELECT campaign_id, platform, title, goal, count, state, cycle, updated_at
		FROM campaigns
		WHERE campaign_id = $1`, campaignID).
		Scan(&c.ID, &c.Platform, &c.Title, &c.Goal, &c.Count, &c.State, &c.Cycle, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetEntry returns the participant's entry record for a campaign. Absence is
// a zero-valued record, matching how the engine treats it on submit.
func (s *CampaignService) GetEntry(ctx context.Context, campaignID, participantID string) (*models.Entry, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}

	entry := models.Entry{CampaignID: campaignID, ParticipantID: participantID}
	err := s.db.QueryRowContext(ctx, `
		SELECT count, credit_count, created_at
		FROM entries
		WHERE campaign_id = $1 AND participant_id = $2`, campaignID, participantID).
		Scan(&entry.Count, &entry.CreditCount, &entry.CreatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return &entry, nil
}
