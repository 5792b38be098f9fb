package models

import "time"

// Winner is the immutable record of one completed draw. Rows are append-only:
// never updated, never deleted. The (campaign_id, cycle) pair fences a draw
// cycle so an interrupted draw can resume without picking a second winner.
type Winner struct {
	ID            string    `json:"id" db:"id"`
	ParticipantID string    `json:"pseudo" db:"participant_id"`
	CampaignID    string    `json:"campaign_id" db:"campaign_id"`
	Cycle         int64     `json:"-" db:"cycle"`
	Platform      string    `json:"platform" db:"platform"`
	Months        int       `json:"months" db:"months"`
	Country       string    `json:"country" db:"country"`
	DrawDate      string    `json:"dateISO" db:"draw_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
