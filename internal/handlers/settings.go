package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/settings"
)

type SettingsHandler struct {
	store SettingsStore
	rules VotingRules
}

func NewSettingsHandler(store SettingsStore, rules VotingRules) *SettingsHandler {
	return &SettingsHandler{store: store, rules: rules}
}

// GetVotingSettings reports the rules new votes and proposals run under
func (h *SettingsHandler) GetVotingSettings(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"voting_duration_days": h.rules.CurrentDuration(ctx),
		"allow_vote_changes":   h.rules.AllowVoteChanges(ctx),
		"min_votes_required":   h.rules.MinVotesRequired(ctx),
	})
}

func (h *SettingsHandler) ListSettings(c *gin.Context) {
	all := h.store.All(c.Request.Context())
	if all == nil {
		all = []models.Setting{}
	}
	c.JSON(http.StatusOK, all)
}

// UpdateSetting writes a setting and clears the settings caches. The
// change takes effect at the time of the request.
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")

	var input models.UpdateSettingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	setting, err := h.store.Update(c.Request.Context(), key, input.Value, input.Description)
	if errors.Is(err, settings.ErrInvalidValue) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to update setting", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}

	c.JSON(http.StatusOK, setting)
}

func (h *SettingsHandler) GetSettingHistory(c *gin.Context) {
	history := h.store.History(c.Request.Context(), c.Param("key"))
	if history == nil {
		history = []models.SettingHistoryEntry{}
	}
	c.JSON(http.StatusOK, history)
}
