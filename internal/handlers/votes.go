package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/middleware"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/voting"
)

type VoteHandler struct {
	votes VoteService
	now   func() time.Time
}

func NewVoteHandler(votes VoteService, now func() time.Time) *VoteHandler {
	return &VoteHandler{votes: votes, now: now}
}

// CastVote records the caller's vote on a proposal
func (h *VoteHandler) CastVote(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proposal ID"})
		return
	}

	var input models.CastVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vote_type is required"})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	outcome, err := h.votes.Cast(c.Request.Context(), voting.CastVote{
		ProposalID: id,
		UserID:     userID,
		Username:   middleware.GetUsername(c),
		VoteType:   input.VoteType,
	}, h.now())
	if err != nil {
		status, msg := voteError(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(c.Request.Context(), "failed to cast vote", "proposal_id", id, "user_id", userID, "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	status := http.StatusCreated
	if outcome.Changed {
		status = http.StatusOK
	}
	c.JSON(status, outcome)
}

// GetVotes lists the votes on a proposal
func (h *VoteHandler) GetVotes(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proposal ID"})
		return
	}

	votes, err := h.votes.Votes(c.Request.Context(), id)
	if err != nil {
		status, msg := voteError(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(c.Request.Context(), "failed to list votes", "proposal_id", id, "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if votes == nil {
		votes = []models.Vote{}
	}
	c.JSON(http.StatusOK, votes)
}

func voteError(err error) (int, string) {
	switch {
	case errors.Is(err, voting.ErrVotingClosed):
		return http.StatusBadRequest, "Voting period has ended for this proposal"
	case errors.Is(err, voting.ErrInvalidVoteType):
		return http.StatusBadRequest, "vote_type must be upvote or downvote"
	case errors.Is(err, voting.ErrAlreadyVoted):
		return http.StatusConflict, "You have already voted on this proposal"
	case errors.Is(err, voting.ErrProposalNotFound):
		return http.StatusNotFound, "Proposal not found"
	default:
		return http.StatusInternalServerError, "Failed to process vote"
	}
}
