package voting

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

const (
	DefaultDurationDays = 30
	MinDurationDays     = 1
	MaxDurationDays     = 365

	DefaultMinVotesRequired = 3
)

// SettingsSource is the read side of the settings store.
type SettingsSource interface {
	Current(ctx context.Context, key string) (string, bool)
	CurrentFresh(ctx context.Context, key string) (string, bool)
	History(ctx context.Context, key string) []models.SettingHistoryEntry
}

// Resolver answers which voting duration applied at a given instant.
// It never fails: missing or unreadable settings resolve to defaults.
type Resolver struct {
	settings SettingsSource
}

func NewResolver(settings SettingsSource) *Resolver {
	return &Resolver{settings: settings}
}

// ClampDuration bounds n to [MinDurationDays, MaxDurationDays].
func ClampDuration(n int) int {
	return min(max(n, MinDurationDays), MaxDurationDays)
}

func parseDays(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return ClampDuration(n), true
}

// DurationFromValue parses a stored duration, falling back to the default.
func DurationFromValue(raw *string) int {
	if raw != nil {
		if n, ok := parseDays(*raw); ok {
			return n
		}
	}
	return DefaultDurationDays
}

func (r *Resolver) CurrentDuration(ctx context.Context) int {
	v, ok := r.settings.Current(ctx, models.SettingVotingDurationDays)
	if !ok {
		return DefaultDurationDays
	}
	return DurationFromValue(&v)
}

// CurrentDurationFresh skips the settings cache. Submission uses it so a
// change made moments ago applies to the next proposal.
func (r *Resolver) CurrentDurationFresh(ctx context.Context) int {
	v, ok := r.settings.CurrentFresh(ctx, models.SettingVotingDurationDays)
	if !ok {
		return DefaultDurationDays
	}
	return DurationFromValue(&v)
}

func (r *Resolver) history(ctx context.Context) []models.SettingHistoryEntry {
	entries := r.settings.History(ctx, models.SettingVotingDurationDays)
	slices.SortStableFunc(entries, func(a, b models.SettingHistoryEntry) int {
		return a.EffectiveAt.Compare(b.EffectiveAt)
	})
	return entries
}

// DurationAt returns the duration in effect at t. An entry whose
// EffectiveAt equals t counts as already applied.
func (r *Resolver) DurationAt(ctx context.Context, t time.Time) int {
	entries := r.history(ctx)
	if len(entries) == 0 {
		return r.CurrentDuration(ctx)
	}

	for _, e := range entries {
		if !e.EffectiveAt.After(t) {
			continue
		}
		// The change had not happened yet at t.
		if e.OldValue != nil {
			if n, ok := parseDays(*e.OldValue); ok {
				return n
			}
		}
		if n, ok := parseDays(e.NewValue); ok {
			return n
		}
		return r.CurrentDuration(ctx)
	}

	if n, ok := parseDays(entries[len(entries)-1].NewValue); ok {
		return n
	}
	return r.CurrentDuration(ctx)
}

// HasHistory reports whether any duration change was ever recorded.
func (r *Resolver) HasHistory(ctx context.Context) bool {
	return len(r.settings.History(ctx, models.SettingVotingDurationDays)) > 0
}

// AllowVoteChanges reads the allow_vote_changes flag.
func (r *Resolver) AllowVoteChanges(ctx context.Context) bool {
	v, ok := r.settings.Current(ctx, models.SettingAllowVoteChanges)
	return ok && strings.EqualFold(strings.TrimSpace(v), "TRUE")
}

func (r *Resolver) MinVotesRequired(ctx context.Context) int {
	v, ok := r.settings.Current(ctx, models.SettingMinVotesRequired)
	if !ok {
		return DefaultMinVotesRequired
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return DefaultMinVotesRequired
	}
	return n
}
