package models

import "time"

const (
	SettingVotingDurationDays = "voting_duration_days"
	SettingAllowVoteChanges   = "allow_vote_changes"
	SettingMinVotesRequired   = "min_votes_required"
)

// Setting is a named configuration value. Values are always stored as
// strings and interpreted per key.
type Setting struct {
	ID          int       `gorm:"primaryKey" json:"-"`
	Key         string    `gorm:"column:setting_key;uniqueIndex;not null" json:"setting_key"`
	Value       string    `gorm:"column:setting_value;type:text;not null" json:"setting_value"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingHistoryEntry records one transition of a setting value. Rows are
// append-only.
type SettingHistoryEntry struct {
	ID          int       `gorm:"primaryKey" json:"-"`
	SettingKey  string    `gorm:"not null;index:idx_setting_history_key_effective" json:"setting_key"`
	OldValue    *string   `json:"old_value"`
	NewValue    string    `gorm:"not null" json:"new_value"`
	EffectiveAt time.Time `gorm:"not null;index:idx_setting_history_key_effective" json:"effective_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SettingHistoryEntry) TableName() string {
	return "setting_history"
}

type UpdateSettingRequest struct {
	Value       string `json:"value" binding:"required"`
	Description string `json:"description"`
}
