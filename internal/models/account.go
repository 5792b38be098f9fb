package models

import (
	"fmt"
	"time"
)

// Account holds a participant's redeemable credit balance. Credits are
// debited only inside the same transaction as the entry they fund; top-ups
// (welcome and referral grants) happen outside the participation path.
type Account struct {
	ParticipantID string    `json:"participant_id" db:"participant_id"`
	Credits       int64     `json:"credits" db:"credits"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Account) Validate() error {
	if a.ParticipantID == "" {
		return fmt.Errorf("account has empty participant id")
	}
	if a.Credits < 0 {
		return fmt.Errorf("account %s has negative credits %d", a.ParticipantID, a.Credits)
	}
	return nil
}
