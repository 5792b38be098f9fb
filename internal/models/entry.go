package models

import (
	"fmt"
	"time"
)

// MaxCreditEntries is the per-campaign cap on credit-funded entries.
const MaxCreditEntries = 2

// Entry is the per-(campaign, participant) ledger row. Scoped to one draw
// cycle; deleted in bulk when the cycle's draw completes.
type Entry struct {
	CampaignID    string    `json:"campaign_id" db:"campaign_id"`
	ParticipantID string    `json:"participant_id" db:"participant_id"`
	Count         int64     `json:"count" db:"count"`
	CreditCount   int64     `json:"credit_count" db:"credit_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Validate enforces the entry invariants: credit entries never exceed the
// cap nor the total entry count.
func (e *Entry) Validate() error {
	if e.Count < 0 || e.CreditCount < 0 {
		return fmt.Errorf("entry %s/%s has negative counter", e.CampaignID, e.ParticipantID)
	}
	if e.CreditCount > e.Count {
		return fmt.Errorf("entry %s/%s has credit_count %d above count %d",
			e.CampaignID, e.ParticipantID, e.CreditCount, e.Count)
	}
	if e.CreditCount > MaxCreditEntries {
		return fmt.Errorf("entry %s/%s has credit_count %d above limit %d",
			e.CampaignID, e.ParticipantID, e.CreditCount, MaxCreditEntries)
	}
	return nil
}
