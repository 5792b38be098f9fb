package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zoarius/winastreamv4/internal/config"
	mW "github.com/zoarius/winastreamv4/internal/middleware"
	"github.com/zoarius/winastreamv4/internal/models"
)

func testConfig() *config.SweepstakesConfig {
	return &config.SweepstakesConfig{
		WelcomeCredits:  10,
		ReferralCredits: 10,
		WinnerMonths:    1,
		DefaultCountry:  "FR",
		DefaultGoal:     5,
		DrawStaleAfter:  2 * time.Minute,
		TxMaxRetries:    2,
		TxRetryBackoff:  time.Millisecond,
	}
}

func expectCampaignRead(mock sqlmock.Sqlmock, campaignID string, goal, count int64) {
	mock.ExpectQuery("SELECT campaign_id, platform, title, goal, count, state FROM campaigns WHERE campaign_id = \\$1").
		WithArgs(campaignID).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "platform", "title", "goal", "count", "state"}).
			AddRow(campaignID, "netflix", "Netflix Subscription", goal, count, models.CampaignStateOpen))
}

func expectEntryRead(mock sqlmock.Sqlmock, campaignID, participantID string, count, creditCount int64) {
	mock.ExpectQuery("SELECT count, credit_count, created_at FROM entries WHERE campaign_id = \\$1 AND participant_id = \\$2").
		WithArgs(campaignID, participantID).
		WillReturnRows(sqlmock.NewRows([]string{"count", "credit_count", "created_at"}).
			AddRow(count, creditCount, time.Now()))
}

func expectEntryMissing(mock sqlmock.Sqlmock, campaignID, participantID string) {
	mock.ExpectQuery("SELECT count, credit_count, created_at FROM entries WHERE campaign_id = \\$1 AND participant_id = \\$2").
		WithArgs(campaignID, participantID).
		WillReturnError(sql.ErrNoRows)
}

func TestParticipationService_Submit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	notifier := NewRedisNotifier(nil)
	service := NewParticipationService(db, nil, notifier, testConfig())

	t.Run("first entry without credit", func(t *testing.T) {
		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 12)
		expectEntryMissing(mock, "netflix", "alice")

		mock.ExpectExec("INSERT INTO entries \\(campaign_id, participant_id, count, credit_count, created_at\\)").
			WithArgs("netflix", "alice", int64(0), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE campaigns SET count = count \\+ 1, updated_at = NOW\\(\\) WHERE campaign_id = \\$1").
			WithArgs("netflix").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		entry, err := service.Submit(context.Background(), "netflix", "alice", false)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), entry.Count)
		assert.Equal(t, int64(0), entry.CreditCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("credit entry on existing record", func(t *testing.T) {
		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 40)
		expectEntryRead(mock, "netflix", "alice", 3, 1)

		mock.ExpectQuery("SELECT credits FROM accounts WHERE participant_id = \\$1").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(5))

		mock.ExpectExec("UPDATE accounts SET credits = credits - 1, updated_at = NOW\\(\\) WHERE participant_id = \\$1 AND credits >= 1").
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE entries SET count = count \\+ 1, credit_count = credit_count \\+ \\$3").
			WithArgs("netflix", "alice", int64(1)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE campaigns SET count = count \\+ 1, updated_at = NOW\\(\\) WHERE campaign_id = \\$1").
			WithArgs("netflix").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		entry, err := service.Submit(context.Background(), "netflix", "alice", true)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), entry.Count)
		assert.Equal(t, int64(2), entry.CreditCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("campaign not found writes nothing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT campaign_id, platform, title, goal, count, state FROM campaigns WHERE campaign_id = \\$1").
			WithArgs("gone").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		entry, err := service.Submit(context.Background(), "gone", "alice", false)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("credit limit checked before balance", func(t *testing.T) {
		// Participant has spent both credit entries and has zero credits left:
		// the limit error must win, no account read happens at all.
		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 80)
		expectEntryRead(mock, "netflix", "bob", 6, 2)
		mock.ExpectRollback()

		entry, err := service.Submit(context.Background(), "netflix", "bob", true)
		assert.ErrorIs(t, err, ErrCreditLimitReached)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient credits", func(t *testing.T) {
		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 80)
		expectEntryRead(mock, "netflix", "carol", 2, 1)

		mock.ExpectQuery("SELECT credits FROM accounts WHERE participant_id = \\$1").
			WithArgs("carol").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(0))
		mock.ExpectRollback()

		entry, err := service.Submit(context.Background(), "netflix", "carol", true)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account counts as insufficient credits", func(t *testing.T) {
		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 80)
		expectEntryMissing(mock, "netflix", "ghost")

		mock.ExpectQuery("SELECT credits FROM accounts WHERE participant_id = \\$1").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.Submit(context.Background(), "netflix", "ghost", true)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries after serialization conflict", func(t *testing.T) {
		// First attempt collides, second goes through.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT campaign_id, platform, title, goal, count, state FROM campaigns WHERE campaign_id = \\$1").
			WithArgs("netflix").
			WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectRollback()

		mock.ExpectBegin()
		expectCampaignRead(mock, "netflix", 1000, 999)
		expectEntryMissing(mock, "netflix", "dave")
		mock.ExpectExec("INSERT INTO entries").
			WithArgs("netflix", "dave", int64(0), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE campaigns SET count = count \\+ 1").
			WithArgs("netflix").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		entry, err := service.Submit(context.Background(), "netflix", "dave", false)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), entry.Count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict retries exhausted surface as unavailable", func(t *testing.T) {
		for i := 0; i < testConfig().TxMaxRetries+1; i++ {
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT campaign_id, platform, title, goal, count, state FROM campaigns WHERE campaign_id = \\$1").
				WithArgs("netflix").
				WillReturnError(&pq.Error{Code: "40001"})
			mock.ExpectRollback()
		}

		entry, err := service.Submit(context.Background(), "netflix", "erin", false)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubmitEntry_GoalCrossingTriggersDraw(t *testing.T) {
	// Goal of 5: one participant's 5th committed entry crosses the goal, the
	// post-commit check claims and runs the draw, exactly one winner is
	// recorded and notified and the ledger is left empty for the next cycle.
	db, mockDB, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &MockSink{}
	notifier := NewRedisNotifier(nil)
	draws := NewDrawService(db, NewWinnerService(db), sink, notifier, testConfig())
	draws.rng = rand.New(rand.NewSource(1))
	service := NewParticipationService(db, draws, notifier, testConfig())

	// The 5th submission commits at count 4.
	mockDB.ExpectBegin()
	expectCampaignRead(mockDB, "netflix", 5, 4)
	expectEntryRead(mockDB, "netflix", "alice", 4, 0)
	mockDB.ExpectExec("UPDATE entries SET count = count \\+ 1, credit_count = credit_count \\+ \\$3").
		WithArgs("netflix", "alice", int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockDB.ExpectExec("UPDATE campaigns SET count = count \\+ 1, updated_at = NOW\\(\\) WHERE campaign_id = \\$1").
		WithArgs("netflix").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mockDB.ExpectCommit()

	// Post-commit goal check claims the draw and runs it to completion.
	expectClaim(mockDB, "netflix", 1)
	expectNoWinnerYet(mockDB, "netflix", 1, false)
	mockDB.ExpectQuery("SELECT participant_id, count FROM entries WHERE campaign_id = \\$1").
		WithArgs("netflix").
		WillReturnRows(sqlmock.NewRows([]string{"participant_id", "count"}).
			AddRow("alice", 5))
	mockDB.ExpectExec("INSERT INTO winners").
		WithArgs(sqlmock.AnyArg(), "alice", "netflix", int64(1), "netflix", 1, "FR", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sink.On("Notify", mock.Anything, "alice", mock.Anything, mock.Anything).Return()
	expectFinish(mockDB, "netflix", 1)

	router := chi.NewRouter()
	router.With(mW.ParticipantMiddleware).Post("/campaigns/{campaignId}/entries", service.SubmitEntry)

	req := httptest.NewRequest("POST", "/campaigns/netflix/entries", bytes.NewBufferString(`{"useCredit":false}`))
	req.Header.Set("X-Participant-ID", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Success       bool         `json:"success"`
		Entry         models.Entry `json:"entry"`
		DrawTriggered bool         `json:"drawTriggered"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.DrawTriggered)
	assert.Equal(t, int64(5), resp.Entry.Count)
	sink.AssertNumberOfCalls(t, "Notify", 1)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}
