package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/metrics"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeBackend struct {
	mu           sync.Mutex
	settings     map[string]models.Setting
	history      []models.SettingHistoryEntry
	listCalls    int
	historyCalls int
	failList     bool
	failHistory  bool
	failSave     bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{settings: map[string]models.Setting{}}
}

func (b *fakeBackend) ListSettings(ctx context.Context) ([]models.Setting, error) {
	b.listCalls++
	if b.failList {
		return nil, errors.New("connection refused")
	}
	var out []models.Setting
	for _, s := range b.settings {
		out = append(out, s)
	}
	return out, nil
}

func (b *fakeBackend) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	s, ok := b.settings[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (b *fakeBackend) ListHistory(ctx context.Context, key string) ([]models.SettingHistoryEntry, error) {
	b.historyCalls++
	if b.failHistory {
		return nil, errors.New("timeout")
	}
	var out []models.SettingHistoryEntry
	for _, e := range b.history {
		if e.SettingKey == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *fakeBackend) AppendHistory(ctx context.Context, entry *models.SettingHistoryEntry) error {
	b.history = append(b.history, *entry)
	return nil
}

func (b *fakeBackend) SaveSetting(ctx context.Context, change Change) (*models.Setting, *models.SettingHistoryEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return nil, nil, errors.New("write failed")
	}

	setting, exists := b.settings[change.Key]
	var oldValue *string
	if exists {
		old := setting.Value
		oldValue = &old
	} else {
		setting = models.Setting{ID: len(b.settings) + 1, Key: change.Key}
	}
	setting.Value = change.Value
	if change.Description != "" {
		setting.Description = change.Description
	}
	b.settings[change.Key] = setting

	if !change.RecordHistory || (oldValue != nil && *oldValue == change.Value) {
		return &setting, nil, nil
	}
	effectiveAt := change.EffectiveAt
	for _, e := range b.history {
		if e.SettingKey == change.Key && e.EffectiveAt.After(effectiveAt) {
			effectiveAt = e.EffectiveAt
		}
	}
	entry := models.SettingHistoryEntry{SettingKey: change.Key, OldValue: oldValue, NewValue: change.Value, EffectiveAt: effectiveAt}
	b.history = append(b.history, entry)
	return &setting, &entry, nil
}

func strPtr(s string) *string { return &s }

func newTestStore(b Backend) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(b, Config{
		SettingsTTL: 5 * time.Minute,
		HistoryTTL:  time.Minute,
		Now:         clock.Now,
	}), clock
}

func TestCacheTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewCache[int](time.Minute, clock.Now)

	_, ok := c.Get()
	assert.False(t, ok)

	c.Set(7)
	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get()
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get()
	assert.False(t, ok, "entry must expire at the TTL")

	last, ok := c.Last()
	assert.True(t, ok)
	assert.Equal(t, 7, last)
}

func TestCacheInvalidateKeepsLast(t *testing.T) {
	c := NewCache[string](time.Hour, nil)
	c.Set("30")
	c.Invalidate()

	_, ok := c.Get()
	assert.False(t, ok)
	last, ok := c.Last()
	assert.True(t, ok)
	assert.Equal(t, "30", last)
}

func TestCurrentIsBatchCachedUntilTTL(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "30"}
	b.settings[models.SettingMinVotesRequired] = models.Setting{Key: models.SettingMinVotesRequired, Value: "3"}
	s, clock := newTestStore(b)
	ctx := context.Background()

	v, ok := s.Current(ctx, models.SettingVotingDurationDays)
	require.True(t, ok)
	assert.Equal(t, "30", v)
	v, _ = s.Current(ctx, models.SettingMinVotesRequired)
	assert.Equal(t, "3", v)
	assert.Equal(t, 1, b.listCalls, "one batch read serves every key")

	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "14"}
	v, _ = s.Current(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, "30", v, "cached value served within TTL")

	clock.Advance(5 * time.Minute)
	v, _ = s.Current(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, "14", v)
	assert.Equal(t, 2, b.listCalls)
}

func TestCurrentFreshBypassesCache(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "30"}
	s, _ := newTestStore(b)
	ctx := context.Background()

	s.Current(ctx, models.SettingVotingDurationDays)
	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "10"}

	v, ok := s.CurrentFresh(ctx, models.SettingVotingDurationDays)
	require.True(t, ok)
	assert.Equal(t, "10", v)

	v, _ = s.Current(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, "10", v, "fresh read also refreshes the cache")
}

func TestCurrentServesLastGoodOnFailure(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "21"}
	s, clock := newTestStore(b)
	ctx := context.Background()

	s.Current(ctx, models.SettingVotingDurationDays)
	clock.Advance(10 * time.Minute)
	b.failList = true

	v, ok := s.Current(ctx, models.SettingVotingDurationDays)
	assert.True(t, ok)
	assert.Equal(t, "21", v)

	v, ok = s.CurrentFresh(ctx, models.SettingVotingDurationDays)
	assert.True(t, ok)
	assert.Equal(t, "21", v)
}

func TestCurrentWithoutAnyDataIsAbsent(t *testing.T) {
	b := newFakeBackend()
	b.failList = true
	s, _ := newTestStore(b)

	_, ok := s.Current(context.Background(), models.SettingVotingDurationDays)
	assert.False(t, ok)
}

func TestHistorySortedAndCached(t *testing.T) {
	b := newFakeBackend()
	b.history = []models.SettingHistoryEntry{
		{SettingKey: models.SettingVotingDurationDays, OldValue: strPtr("14"), NewValue: "21", EffectiveAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{SettingKey: models.SettingVotingDurationDays, OldValue: strPtr("30"), NewValue: "14", EffectiveAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{SettingKey: "other", NewValue: "x", EffectiveAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	s, clock := newTestStore(b)
	ctx := context.Background()

	entries := s.History(ctx, models.SettingVotingDurationDays)
	require.Len(t, entries, 2)
	assert.Equal(t, "14", entries[0].NewValue)
	assert.Equal(t, "21", entries[1].NewValue)

	s.History(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, 1, b.historyCalls)

	clock.Advance(time.Minute)
	s.History(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, 2, b.historyCalls)
}

func TestHistoryServesLastGoodOnFailure(t *testing.T) {
	b := newFakeBackend()
	b.history = []models.SettingHistoryEntry{
		{SettingKey: models.SettingVotingDurationDays, OldValue: strPtr("30"), NewValue: "14", EffectiveAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	s, clock := newTestStore(b)
	ctx := context.Background()

	require.Len(t, s.History(ctx, models.SettingVotingDurationDays), 1)

	clock.Advance(2 * time.Minute)
	b.failHistory = true
	assert.Len(t, s.History(ctx, models.SettingVotingDurationDays), 1)

	empty, _ := newTestStore(b)
	assert.Empty(t, empty.History(ctx, models.SettingVotingDurationDays))
}

func TestUpdateRecordsDurationHistoryAndInvalidates(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{ID: 1, Key: models.SettingVotingDurationDays, Value: "30", Description: "days"}
	s, clock := newTestStore(b)
	ctx := context.Background()

	s.Current(ctx, models.SettingVotingDurationDays)
	assert.Empty(t, s.History(ctx, models.SettingVotingDurationDays))

	clock.Advance(12 * time.Hour)
	effective := clock.Now()
	updated, err := s.Update(ctx, models.SettingVotingDurationDays, " 14 ", "")
	require.NoError(t, err)
	assert.Equal(t, "14", updated.Value)
	assert.Equal(t, "days", updated.Description)
	assert.Equal(t, 1, updated.ID)

	v, _ := s.Current(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, "14", v)

	entries := s.History(ctx, models.SettingVotingDurationDays)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].OldValue)
	assert.Equal(t, "30", *entries[0].OldValue)
	assert.Equal(t, "14", entries[0].NewValue)
	assert.True(t, entries[0].EffectiveAt.Equal(effective))

	clock.Advance(time.Hour)
	_, err = s.Update(ctx, models.SettingVotingDurationDays, "14", "")
	require.NoError(t, err)
	assert.Len(t, b.history, 1, "unchanged value is not a transition")
}

func TestUpdateOtherKeysSkipHistory(t *testing.T) {
	b := newFakeBackend()
	s, _ := newTestStore(b)

	updated, err := s.Update(context.Background(), models.SettingAllowVoteChanges, "true", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "TRUE", updated.Value)
	assert.Empty(t, b.history)
}

func TestUpdateChainsTransitionsOnStoreClock(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{ID: 1, Key: models.SettingVotingDurationDays, Value: "30"}
	s, clock := newTestStore(b)
	ctx := context.Background()

	first := clock.Now()
	_, err := s.Update(ctx, models.SettingVotingDurationDays, "14", "")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	second := clock.Now()
	_, err = s.Update(ctx, models.SettingVotingDurationDays, "7", "")
	require.NoError(t, err)

	entries := s.History(ctx, models.SettingVotingDurationDays)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].EffectiveAt.Equal(first))
	assert.True(t, entries[1].EffectiveAt.Equal(second))
	assert.Equal(t, "30", *entries[0].OldValue)
	assert.Equal(t, entries[0].NewValue, *entries[1].OldValue)

	v, _ := s.Current(ctx, models.SettingVotingDurationDays)
	assert.Equal(t, entries[1].NewValue, v, "live value matches the last transition")
}

func TestMetricsCountOnlyReloads(t *testing.T) {
	registry := prometheus.NewRegistry()
	b := newFakeBackend()
	b.settings["a"] = models.Setting{Key: "a", Value: "1"}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(b, Config{Now: clock.Now, Metrics: metrics.New(registry)})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Current(ctx, "a")
		s.History(ctx, "a")
	}

	count, err := testutil.GatherAndCount(registry, "portal_settings_cache_refreshes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one settings reload and one history reload")
	assert.Equal(t, 1, b.listCalls)
	assert.Equal(t, 1, b.historyCalls)
}

func TestUpdateValidation(t *testing.T) {
	s, _ := newTestStore(newFakeBackend())
	ctx := context.Background()

	for _, tc := range []struct {
		key, value string
	}{
		{models.SettingVotingDurationDays, "0"},
		{models.SettingVotingDurationDays, "366"},
		{models.SettingVotingDurationDays, "abc"},
		{models.SettingMinVotesRequired, "-1"},
		{models.SettingAllowVoteChanges, "maybe"},
	} {
		_, err := s.Update(ctx, tc.key, tc.value, "")
		assert.ErrorIs(t, err, ErrInvalidValue, "%s=%q", tc.key, tc.value)
	}
}

func TestUpdateSaveFailure(t *testing.T) {
	b := newFakeBackend()
	b.failSave = true
	s, _ := newTestStore(b)

	_, err := s.Update(context.Background(), models.SettingVotingDurationDays, "10", "")
	assert.ErrorContains(t, err, "write failed")
}

func TestAppendHistoryInvalidatesHistoryCache(t *testing.T) {
	b := newFakeBackend()
	s, _ := newTestStore(b)
	ctx := context.Background()

	assert.Empty(t, s.History(ctx, models.SettingVotingDurationDays))
	require.NoError(t, s.AppendHistory(ctx, models.SettingVotingDurationDays, strPtr("30"), "7", time.Now()))
	assert.Len(t, s.History(ctx, models.SettingVotingDurationDays), 1)
}

func TestAllSortedByKey(t *testing.T) {
	b := newFakeBackend()
	b.settings["b"] = models.Setting{Key: "b", Value: "2"}
	b.settings["a"] = models.Setting{Key: "a", Value: "1"}
	s, _ := newTestStore(b)

	all := s.All(context.Background())
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key)
}

func TestLoadSeedDefaults(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)

	byKey := map[string]string{}
	for _, s := range seed {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, "30", byKey[models.SettingVotingDurationDays])
	assert.Equal(t, "FALSE", byKey[models.SettingAllowVoteChanges])
	assert.Equal(t, "3", byKey[models.SettingMinVotesRequired])
}

func TestLoadSeedFileRejectsBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  - key: voting_duration_days\n    value: \"900\"\n"), 0o600))

	_, err := LoadSeed(path)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoadSeedFileRejectsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  - value: \"5\"\n"), 0o600))

	_, err := LoadSeed(path)
	assert.EqualError(t, err, "parse seed file: setting without key")
}

func TestSeedKeepsExistingRows(t *testing.T) {
	b := newFakeBackend()
	b.settings[models.SettingVotingDurationDays] = models.Setting{Key: models.SettingVotingDurationDays, Value: "10"}
	seed, err := LoadSeed("")
	require.NoError(t, err)

	created, err := Seed(context.Background(), b, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, "10", b.settings[models.SettingVotingDurationDays].Value)
	assert.Empty(t, b.history)
}
