package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/settings"
)

// ListSettings returns every setting row
func (r *Repository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	err := r.db.WithContext(ctx).Order("setting_key").Find(&settings).Error
	return settings, err
}

// GetSetting returns nil, nil when key has never been written
func (r *Repository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ListHistory returns the transitions of key, oldest first
func (r *Repository) ListHistory(ctx context.Context, key string) ([]models.SettingHistoryEntry, error) {
	var entries []models.SettingHistoryEntry
	err := r.db.WithContext(ctx).
		Where("setting_key = ?", key).
		Order("effective_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *Repository) AppendHistory(ctx context.Context, entry *models.SettingHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// SaveSetting applies change in one transaction. A missing row is
// inserted; an existing one is re-read under FOR UPDATE so concurrent
// writers chain their history entries instead of sharing an old value.
func (r *Repository) SaveSetting(ctx context.Context, change settings.Change) (*models.Setting, *models.SettingHistoryEntry, error) {
	var saved models.Setting
	var entry *models.SettingHistoryEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldValue *string

		candidate := models.Setting{Key: change.Key, Value: change.Value, Description: change.Description}
		inserted := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoNothing: true,
		}).Create(&candidate)
		if inserted.Error != nil {
			return inserted.Error
		}

		if inserted.RowsAffected == 1 {
			saved = candidate
		} else {
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("setting_key = ?", change.Key).
				First(&saved).Error
			if err != nil {
				return err
			}

			old := saved.Value
			oldValue = &old
			saved.Value = change.Value
			if change.Description != "" {
				saved.Description = change.Description
			}
			if err := tx.Save(&saved).Error; err != nil {
				return err
			}
		}

		if !change.RecordHistory || (oldValue != nil && *oldValue == change.Value) {
			return nil
		}

		effectiveAt := change.EffectiveAt.UTC()
		var last models.SettingHistoryEntry
		err := tx.Where("setting_key = ?", change.Key).
			Order("effective_at DESC, id DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}
		if last.ID != 0 && last.EffectiveAt.After(effectiveAt) {
			effectiveAt = last.EffectiveAt
		}

		entry = &models.SettingHistoryEntry{
			SettingKey:  change.Key,
			OldValue:    oldValue,
			NewValue:    change.Value,
			EffectiveAt: effectiveAt,
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &saved, entry, nil
}
