package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

// InsertVote relies on the (proposal_id, user_id) and
// (proposal_id, username_key) unique indexes; a conflicting row is
// skipped and reported as false.
func (r *Repository) InsertVote(ctx context.Context, vote *models.Vote) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(vote)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindVoteByUser returns nil, nil when the user has not voted
func (r *Repository) FindVoteByUser(ctx context.Context, proposalID, userID int) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ?", proposalID, userID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *Repository) UpdateVoteType(ctx context.Context, voteID int, voteType string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("id = ?", voteID).
		Updates(map[string]interface{}{"vote_type": voteType, "vote_date": at}).Error
}

func (r *Repository) ListVotes(ctx context.Context, proposalID int) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("vote_date ASC, id ASC").
		Find(&votes).Error
	return votes, err
}

func (r *Repository) calculateVotes(ctx context.Context, proposalID int) (int, int, error) {
	var upvotes, downvotes int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Vote{}).Where("proposal_id = ? AND vote_type = ?", proposalID, models.VoteUp).Count(&upvotes).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&models.Vote{}).Where("proposal_id = ? AND vote_type = ?", proposalID, models.VoteDown).Count(&downvotes).Error; err != nil {
		return 0, 0, err
	}
	return int(upvotes), int(downvotes), nil
}

// RecomputeResult rebuilds the cached aggregate from the vote rows
func (r *Repository) RecomputeResult(ctx context.Context, proposalID int) (*models.VotingResult, error) {
	up, down, err := r.calculateVotes(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	result := &models.VotingResult{
		ProposalID: proposalID,
		Upvotes:    up,
		Downvotes:  down,
		NetScore:   up - down,
		VoterCount: up + down,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"upvotes", "downvotes", "net_score", "voter_count", "updated_at"}),
	}).Create(result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Results returns the stored aggregates that exist for ids
func (r *Repository) Results(ctx context.Context, ids []int) (map[int]models.VotingResult, error) {
	out := make(map[int]models.VotingResult, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var results []models.VotingResult
	if err := r.db.WithContext(ctx).Where("proposal_id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	for _, result := range results {
		out[result.ProposalID] = result
	}
	return out, nil
}
