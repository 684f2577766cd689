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

type ProposalHandler struct {
	proposals ProposalService
	now       func() time.Time
}

func NewProposalHandler(proposals ProposalService, now func() time.Time) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, now: now}
}

// GetProposals lists proposals with their resolved deadlines and results
func (h *ProposalHandler) GetProposals(c *gin.Context) {
	views, err := h.proposals.List(c.Request.Context(), h.now())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list proposals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch proposals"})
		return
	}

	// empty array, not null
	if views == nil {
		views = []voting.ProposalView{}
	}
	c.JSON(http.StatusOK, views)
}

// GetProposal returns a single proposal by ID
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proposal ID"})
		return
	}

	view, err := h.proposals.Get(c.Request.Context(), id, h.now())
	if errors.Is(err, voting.ErrProposalNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Proposal not found"})
		return
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to load proposal", "proposal_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch proposal"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// CreateProposal submits a new proposal for voting
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	var input models.CreateProposalRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	view, err := h.proposals.Submit(c.Request.Context(), userID, input, h.now())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to submit proposal", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create proposal"})
		return
	}

	c.JSON(http.StatusCreated, view)
}
