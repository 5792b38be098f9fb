package models

import (
	"errors"
	"fmt"
	"time"
)

// Campaign state constants
const (
	CampaignStateOpen    = "OPEN"
	CampaignStateDrawing = "DRAWING"
)

// Campaign represents one sweepstakes cycle for a platform. The row is
// long-lived: count and cycle change across draws, the rest is static.
type Campaign struct {
	ID              string     `json:"campaign_id" db:"campaign_id"`
	Platform        string     `json:"platform" db:"platform"`
	Title           string     `json:"title" db:"title"`
	Goal            int64      `json:"goal" db:"goal"`
	Count           int64      `json:"count" db:"count"`
	State           string     `json:"state" db:"state"`
	Cycle           int64      `json:"cycle" db:"cycle"`
	DrawingStartedAt *time.Time `json:"drawing_started_at,omitempty" db:"drawing_started_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate rejects malformed campaign rows at the transaction boundary
// instead of coercing silently.
func (c *Campaign) Validate() error {
	if c.ID == "" {
		return errors.New("campaign id is empty")
	}
	if c.Goal <= 0 {
		return fmt.Errorf("campaign %s has non-positive goal %d", c.ID, c.Goal)
	}
	if c.Count < 0 {
		return fmt.Errorf("campaign %s has negative count %d", c.ID, c.Count)
	}
	if c.State != CampaignStateOpen && c.State != CampaignStateDrawing {
		return fmt.Errorf("campaign %s has unknown state %q", c.ID, c.State)
	}
	return nil
}

// GoalReached reports whether the campaign has collected enough entries
// for a draw. Overshoot past the goal is tolerated.
func (c *Campaign) GoalReached() bool {
	return c.Count >= c.Goal
}
