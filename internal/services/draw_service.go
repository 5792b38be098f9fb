package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/zoarius/winastreamv4/internal/config"
	"github.com/zoarius/winastreamv4/internal/models"
)

// DrawService detects goal attainment, claims exclusive right to run the
// draw, selects a winner and resets the campaign for the next cycle.
//
// The claim is a conditional state transition on the campaign row: among any
// number of concurrent callers that observed count >= goal, only the one
// whose UPDATE matches a row proceeds. A claim whose holder crashed becomes
// claimable again once drawing_started_at exceeds the staleness window, and
// the winner row recorded under the campaign's cycle number guarantees a
// resumed draw never picks a second winner.
type DrawService struct {
	db       *sql.DB
	winners  *WinnerService
	sink     NotificationSink
	notifier *RedisNotifier
	cfg      *config.SweepstakesConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// drawClaim carries the campaign fields the claim winner needs downstream.
type drawClaim struct {
	CampaignID string
	Cycle      int64
	Platform   string
	Title      string
}

func NewDrawService(db *sql.DB, winners *WinnerService, sink NotificationSink, notifier *RedisNotifier, cfg *config.SweepstakesConfig) *DrawService {
	return &DrawService{
		db:       db,
		winners:  winners,
		sink:     sink,
		notifier: notifier,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CheckAndDraw attempts to claim and execute a draw for the campaign.
// Returns true when this caller won the claim and the draw ran to
// completion. Losing the claim, or a campaign below goal, is a silent no-op.
func (s *DrawService) CheckAndDraw(ctx context.Context, campaignID string) (bool, error) {
	claim, claimed, err := s.claimDraw(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	log.Printf("[DRAW] Claimed draw for campaign %s (cycle %d)", claim.CampaignID, claim.Cycle)
	if err := s.executeDraw(ctx, claim); err != nil {
		// Campaign stays in DRAWING; the staleness window makes it claimable
		// again and the recorded winner row prevents re-selection.
		return true, fmt.Errorf("draw execution for campaign %s: %w", claim.CampaignID, err)
	}
	return true, nil
}

// claimDraw performs the atomic conditional transition OPEN -> DRAWING,
// guarded by count >= goal. A campaign stuck in DRAWING past the staleness
// window may be re-claimed to finish an interrupted draw.
func (s *DrawService) claimDraw(ctx context.Context, campaignID string) (*drawClaim, bool, error) {
	claim := &drawClaim{CampaignID: campaignID}
	err := s.db.QueryRowContext(ctx, `
		UPDATE campaigns
		SET state = $2, drawing_started_at = NOW(), updated_at = NOW()
		WHERE campaign_id = $1
		  AND count >= goal
		  AND (state = $3
		       OR (state = $2 AND drawing_started_at < NOW() - $4 * INTERVAL '1 second'))
		RETURNING cycle, platform, title`,
		campaignID, models.CampaignStateDrawing, models.CampaignStateOpen, s.cfg.DrawStaleAfter.Seconds()).
		Scan(&claim.Cycle, &claim.Platform, &claim.Title)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return claim, true, nil
}

// executeDraw runs selection, record, notification, ledger cleanup and reset
// for a claimed campaign. The winner row is written before the ledger is
// cleared so a retry after a crash completes cleanup instead of re-picking.
func (s *DrawService) executeDraw(ctx context.Context, claim *drawClaim) error {
	already, err := s.winners.ExistsForCycle(ctx, claim.CampaignID, claim.Cycle)
	if err != nil {
		return err
	}

	if already {
		log.Printf("[DRAW] Winner already recorded for %s cycle %d, resuming cleanup", claim.CampaignID, claim.Cycle)
	} else {
		pool, err := s.loadPool(ctx, claim.CampaignID)
		if err != nil {
			return err
		}

		winnerID, found := s.pick(pool)
		if !found {
			// Degenerate reset: goal crossed with an empty ledger.
			log.Printf("[DRAW] No participants for campaign %s, resetting without a winner", claim.CampaignID)
			return s.finishCycle(ctx, claim)
		}

		winner := &models.Winner{
			ParticipantID: winnerID,
			CampaignID:    claim.CampaignID,
			Cycle:         claim.Cycle,
			Platform:      claim.Platform,
			Months:        s.cfg.WinnerMonths,
			Country:       s.cfg.DefaultCountry,
			DrawDate:      time.Now().Format("2006-01-02"),
		}
		if err := s.winners.Record(ctx, winner); err != nil {
			return err
		}
		log.Printf("[DRAW] Campaign %s cycle %d won by %s", claim.CampaignID, claim.Cycle, winnerID)

		s.sink.Notify(ctx, winnerID,
			"Congratulations, you won!",
			fmt.Sprintf("You won the %s sweepstakes. Your credentials will arrive within 24 to 48 hours. Keep an eye on your inbox!", claim.Title))
	}

	return s.finishCycle(ctx, claim)
}

// poolEntry is one participant's weight in the selection pool.
type poolEntry struct {
	ParticipantID string
	Count         int64
}

func (s *DrawService) loadPool(ctx context.Context, campaignID string) ([]poolEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, count
		FROM entries
		WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []poolEntry
	for rows.Next() {
		var e poolEntry
		if err := rows.Scan(&e.ParticipantID, &e.Count); err != nil {
			return nil, err
		}
		if e.Count > 0 {
			pool = append(pool, e)
		}
	}
	return pool, rows.Err()
}

// pick selects one participant with probability proportional to entry count.
// Credit-funded and ad-funded entries carry equal weight.
func (s *DrawService) pick(pool []poolEntry) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pickWinner(pool, s.rng.Int63n)
}

// pickWinner walks the cumulative weights to the uniformly drawn index.
// intn must return a uniform value in [0, n).
func pickWinner(pool []poolEntry, intn func(int64) int64) (string, bool) {
	var total int64
	for _, e := range pool {
		total += e.Count
	}
	if total == 0 {
		return "", false
	}

	idx := intn(total)
	for _, e := range pool {
		if idx < e.Count {
			return e.ParticipantID, true
		}
		idx -= e.Count
	}
	// Unreachable for a well-formed pool.
	return pool[len(pool)-1].ParticipantID, true
}

// finishCycle clears the entry ledger, releases the claim and advances the
// cycle, all fenced by the claimed cycle number. A stale holder whose claim
// was taken over and already finished matches zero rows here and must not
// touch the next cycle's ledger, so the delete shares the transaction with
// the guard and rolls back with it.
func (s *DrawService) finishCycle(ctx context.Context, claim *drawClaim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET count = 0, state = $2, cycle = cycle + 1, drawing_started_at = NULL, updated_at = NOW()
		WHERE campaign_id = $1 AND state = $3 AND cycle = $4`,
		claim.CampaignID, models.CampaignStateOpen, models.CampaignStateDrawing, claim.Cycle)
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		tx.Rollback()
		log.Printf("[DRAW] Claim on campaign %s cycle %d was taken over, skipping cleanup", claim.CampaignID, claim.Cycle)
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE campaign_id = $1`, claim.CampaignID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.notifier.PublishCampaignUpdate(ctx, claim.CampaignID)
	return nil
}

// RecoverStaleDraws re-triggers campaigns stuck in DRAWING past the
// staleness window, typically after a crash between winner record and
// cleanup. Intended to run periodically from the server loop.
func (s *DrawService) RecoverStaleDraws(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id
		FROM campaigns
		WHERE state = $1 AND drawing_started_at < NOW() - $2 * INTERVAL '1 second'`,
		models.CampaignStateDrawing, s.cfg.DrawStaleAfter.Seconds())
	if err != nil {
		log.Printf("[DRAW] Stale draw scan failed: %v", err)
		return
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Printf("[DRAW] Stale draw scan failed: %v", err)
			return
		}
		stale = append(stale, id)
	}

	for _, id := range stale {
		log.Printf("[DRAW] Recovering stale draw for campaign %s", id)
		if _, err := s.CheckAndDraw(ctx, id); err != nil {
			log.Printf("[DRAW] Recovery failed for campaign %s: %v", id, err)
		}
	}
}
