package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/metrics"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

const (
	DefaultSettingsTTL = 5 * time.Minute
	DefaultHistoryTTL  = 60 * time.Second
)

var ErrInvalidValue = errors.New("invalid setting value")

// Backend is the persistence the Store reads through.
type Backend interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	ListHistory(ctx context.Context, key string) ([]models.SettingHistoryEntry, error)
	AppendHistory(ctx context.Context, entry *models.SettingHistoryEntry) error
	// SaveSetting applies change in one transaction. The current row is
	// read under a row lock, so the recorded OldValue is always the value
	// being replaced. The returned entry is nil when no history was written.
	SaveSetting(ctx context.Context, change Change) (*models.Setting, *models.SettingHistoryEntry, error)
}

// Change is one write to a setting.
type Change struct {
	Key   string
	Value string
	// Description replaces the stored one unless empty.
	Description string
	// EffectiveAt is moved forward to the latest recorded transition when
	// it would otherwise sort before it.
	EffectiveAt time.Time
	// RecordHistory appends a history entry when the value changes.
	RecordHistory bool
}

type Config struct {
	SettingsTTL time.Duration
	HistoryTTL  time.Duration
	Now         func() time.Time
	Metrics     *metrics.Metrics
}

// Store serves settings and their history from short-lived caches. Read
// failures never reach the caller: they are logged and the last good
// value (or nothing) is served instead.
type Store struct {
	backend    Backend
	now        func() time.Time
	historyTTL time.Duration
	metrics    *metrics.Metrics

	settings *Cache[map[string]models.Setting]

	mu      sync.Mutex
	history map[string]*Cache[[]models.SettingHistoryEntry]
}

func NewStore(backend Backend, cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SettingsTTL <= 0 {
		cfg.SettingsTTL = DefaultSettingsTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = DefaultHistoryTTL
	}
	return &Store{
		backend:    backend,
		now:        cfg.Now,
		historyTTL: cfg.HistoryTTL,
		metrics:    cfg.Metrics,
		settings:   NewCache[map[string]models.Setting](cfg.SettingsTTL, cfg.Now),
		history:    make(map[string]*Cache[[]models.SettingHistoryEntry]),
	}
}

// Current returns the cached value of key.
func (s *Store) Current(ctx context.Context, key string) (string, bool) {
	all, ok := s.settings.Get()
	if !ok {
		all = s.reload(ctx)
	}
	setting, ok := all[key]
	return setting.Value, ok
}

// CurrentFresh reloads every setting before answering.
func (s *Store) CurrentFresh(ctx context.Context, key string) (string, bool) {
	setting, ok := s.reload(ctx)[key]
	return setting.Value, ok
}

// All returns every setting, cached.
func (s *Store) All(ctx context.Context) []models.Setting {
	all, ok := s.settings.Get()
	if !ok {
		all = s.reload(ctx)
	}
	out := make([]models.Setting, 0, len(all))
	for _, setting := range all {
		out = append(out, setting)
	}
	slices.SortFunc(out, func(a, b models.Setting) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

func (s *Store) reload(ctx context.Context) map[string]models.Setting {
	rows, err := s.backend.ListSettings(ctx)
	if err != nil {
		s.metrics.CacheRefresh("settings", "error")
		slog.Error("failed to load settings, serving cached values", "error", err)
		last, _ := s.settings.Last()
		return last
	}

	all := make(map[string]models.Setting, len(rows))
	for _, row := range rows {
		all[row.Key] = row
	}
	s.settings.Set(all)
	s.metrics.CacheRefresh("settings", "ok")
	return all
}

// History returns every recorded transition of key, oldest first.
func (s *Store) History(ctx context.Context, key string) []models.SettingHistoryEntry {
	cache := s.historyCache(key)
	if entries, ok := cache.Get(); ok {
		return slices.Clone(entries)
	}

	entries, err := s.backend.ListHistory(ctx, key)
	if err != nil {
		s.metrics.CacheRefresh("history", "error")
		slog.Error("failed to load setting history, serving cached entries", "key", key, "error", err)
		last, _ := cache.Last()
		return slices.Clone(last)
	}

	slices.SortStableFunc(entries, func(a, b models.SettingHistoryEntry) int {
		return a.EffectiveAt.Compare(b.EffectiveAt)
	})
	cache.Set(entries)
	s.metrics.CacheRefresh("history", "ok")
	return slices.Clone(entries)
}

func (s *Store) historyCache(key string) *Cache[[]models.SettingHistoryEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.history[key]
	if !ok {
		cache = NewCache[[]models.SettingHistoryEntry](s.historyTTL, s.now)
		s.history[key] = cache
	}
	return cache
}

// Invalidate drops every cached setting and history list.
func (s *Store) Invalidate() {
	s.settings.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cache := range s.history {
		cache.Invalidate()
	}
}

// AppendHistory records a transition of key.
func (s *Store) AppendHistory(ctx context.Context, key string, oldValue *string, newValue string, effectiveAt time.Time) error {
	entry := &models.SettingHistoryEntry{
		SettingKey:  key,
		OldValue:    oldValue,
		NewValue:    newValue,
		EffectiveAt: effectiveAt.UTC(),
	}
	if err := s.backend.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append history for %s: %w", key, err)
	}
	s.historyCache(key).Invalidate()
	return nil
}

// Update is the admin write path. The transition is stamped with the
// store's clock. A change to voting_duration_days is recorded in the
// history log within the same transaction as the new value.
func (s *Store) Update(ctx context.Context, key, value, description string) (*models.Setting, error) {
	value, err := NormalizeValue(key, value)
	if err != nil {
		return nil, err
	}

	setting, entry, err := s.backend.SaveSetting(ctx, Change{
		Key:           key,
		Value:         value,
		Description:   description,
		EffectiveAt:   s.now().UTC(),
		RecordHistory: key == models.SettingVotingDurationDays,
	})
	if err != nil {
		return nil, fmt.Errorf("save setting %s: %w", key, err)
	}

	s.Invalidate()
	slog.Info("setting updated", "key", key, "value", value, "history_recorded", entry != nil)
	return setting, nil
}

// NormalizeValue validates value for the known keys and returns its
// canonical string form. Unknown keys are stored as given.
func NormalizeValue(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case models.SettingVotingDurationDays:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 365 {
			return "", fmt.Errorf("%w: %s must be a whole number of days between 1 and 365", ErrInvalidValue, key)
		}
		return strconv.Itoa(n), nil
	case models.SettingMinVotesRequired:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: %s must be a non-negative whole number", ErrInvalidValue, key)
		}
		return strconv.Itoa(n), nil
	case models.SettingAllowVoteChanges:
		upper := strings.ToUpper(value)
		if upper != "TRUE" && upper != "FALSE" {
			return "", fmt.Errorf("%w: %s must be TRUE or FALSE", ErrInvalidValue, key)
		}
		return upper, nil
	}
	return value, nil
}
