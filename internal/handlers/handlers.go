package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/middleware"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/voting"
)

// UserStore is the account persistence the auth handler needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	PromoteIfFirst(ctx context.Context, id int) (bool, error)
}

type ProposalService interface {
	List(ctx context.Context, now time.Time) ([]voting.ProposalView, error)
	Get(ctx context.Context, id int, now time.Time) (*voting.ProposalView, error)
	Submit(ctx context.Context, submittedBy int, req models.CreateProposalRequest, now time.Time) (*voting.ProposalView, error)
}

type VoteService interface {
	Cast(ctx context.Context, req voting.CastVote, now time.Time) (*voting.VoteOutcome, error)
	Votes(ctx context.Context, proposalID int) ([]models.Vote, error)
}

type SettingsStore interface {
	All(ctx context.Context) []models.Setting
	History(ctx context.Context, key string) []models.SettingHistoryEntry
	Update(ctx context.Context, key, value, description string) (*models.Setting, error)
}

// VotingRules reports the settings that govern voting right now.
type VotingRules interface {
	CurrentDuration(ctx context.Context) int
	AllowVoteChanges(ctx context.Context) bool
	MinVotesRequired(ctx context.Context) int
}

// Deps are the services the handlers are built from.
type Deps struct {
	Users     UserStore
	JWT       *middleware.JWT
	Proposals ProposalService
	Votes     VoteService
	Settings  SettingsStore
	Rules     VotingRules
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Proposal *ProposalHandler
	Vote     *VoteHandler
	Settings *SettingsHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Deps) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		Auth:     NewAuthHandler(deps.Users, deps.JWT),
		Proposal: NewProposalHandler(deps.Proposals, now),
		Vote:     NewVoteHandler(deps.Votes, now),
		Settings: NewSettingsHandler(deps.Settings, deps.Rules),
	}
}

func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
