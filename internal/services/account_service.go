package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/zoarius/winastreamv4/internal/config"
	"github.com/zoarius/winastreamv4/internal/middleware"
	"github.com/zoarius/winastreamv4/internal/models"
)

// AccountService provisions participant accounts and serves credit balances.
// Credits are only ever debited by the participation transaction; this
// service handles the welcome and referral grants.
type AccountService struct {
	db        *sql.DB
	sink      NotificationSink
	validator *ValidationHelper
	cfg       *config.SweepstakesConfig
}

func NewAccountService(db *sql.DB, sink NotificationSink, cfg *config.SweepstakesConfig) *AccountService {
	return &AccountService{
		db:        db,
		sink:      sink,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// RegisterAccount creates the account with the welcome credit grant and, when
// a valid referrer is named, credits the referrer.
func (s *AccountService) RegisterAccount(ctx context.Context, pseudo, referrer string) (*models.Account, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (participant_id, credits, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (participant_id) DO NOTHING`,
		pseudo, s.cfg.WelcomeCredits)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrPseudoTaken
	}

	s.sink.Notify(ctx, pseudo,
		"Welcome to WinaStream!",
		fmt.Sprintf("Thanks for joining, %s! To welcome you we are giving you %d free credits. Good luck!", pseudo, s.cfg.WelcomeCredits))

	if referrer != "" && referrer != pseudo {
		s.grantReferral(ctx, referrer, pseudo)
	}

	account := &models.Account{ParticipantID: pseudo, Credits: s.cfg.WelcomeCredits}
	return account, nil
}

// grantReferral credits the referrer if they exist. Failures only log; the
// new registration stands either way.
func (s *AccountService) grantReferral(ctx context.Context, referrer, joined string) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET credits = credits + $2, updated_at = NOW()
		WHERE participant_id = $1`,
		referrer, s.cfg.ReferralCredits)
	if err != nil {
		log.Printf("[ACCOUNT] Referral grant to %s failed: %v", referrer, err)
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		log.Printf("[ACCOUNT] Referral grant skipped, unknown referrer %s", referrer)
		return
	}

	s.sink.Notify(ctx, referrer,
		"Referral bonus!",
		fmt.Sprintf("%s joined through your link. %d free credits have been added to your account.", joined, s.cfg.ReferralCredits))
}

// GetAccountByID returns the account row for a participant.
func (s *AccountService) GetAccountByID(ctx context.Context, participantID string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT participant_id, credits, created_at, updated_at
		FROM accounts
		WHERE participant_id = $1`, participantID).
		Scan(&account.ParticipantID, &account.Credits, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return &account, nil
}

// Register handles account creation
// @Summary Register a participant
// @Description Create an account for a new pseudo with the welcome credit grant
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{pseudo=string,ref=string} true "Registration request"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /accounts/register [post]
func (s *AccountService) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pseudo string `json:"pseudo" validate:"required,max=32"`
		Ref    string `json:"ref,omitempty" validate:"omitempty,max=32"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	pseudo := strings.ToLower(strings.TrimSpace(req.Pseudo))
	if !middleware.ValidPseudo(pseudo) {
		SendErrorResponse(w, "Pseudo must contain only letters and digits", http.StatusBadRequest, nil)
		return
	}
	referrer := strings.ToLower(strings.TrimSpace(req.Ref))
	if referrer != "" && !middleware.ValidPseudo(referrer) {
		referrer = ""
	}

	account, err := s.RegisterAccount(r.Context(), pseudo, referrer)
	if err != nil {
		if errors.Is(err, ErrPseudoTaken) {
			SendErrorResponse(w, "This pseudo is already taken", http.StatusConflict, nil)
			return
		}
		log.Printf("[ACCOUNT] Registration failed for %s: %v", pseudo, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Registered %s with %d welcome credits", pseudo, account.Credits)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccount handles the caller's own balance read
// @Summary Get own account
// @Description Retrieve the calling participant's credit balance
// @Tags accounts
// @Produce json
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /account [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	participantID, ok := r.Context().Value(middleware.ParticipantIDKey).(string)
	if !ok || participantID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.GetAccountByID(r.Context(), participantID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ACCOUNT] Fetch failed for %s: %v", participantID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
