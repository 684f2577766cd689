package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/voting"
)

// ListProposals returns every proposal in submission order
func (r *Repository) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.WithContext(ctx).Order("id ASC").Find(&proposals).Error
	return proposals, err
}

// GetProposal returns nil, nil when the proposal does not exist
func (r *Repository) GetProposal(ctx context.Context, id int) (*models.Proposal, error) {
	var proposal models.Proposal
	err := r.db.WithContext(ctx).First(&proposal, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ProposalPosition counts the proposals submitted before id
func (r *Repository) ProposalPosition(ctx context.Context, id int) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Proposal{}).Where("id < ?", id).Count(&count).Error
	return int(count), err
}

func (r *Repository) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *Repository) AssignCode(ctx context.Context, id int, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ?", id).
		Update("code", code).Error
}

// BackfillDeadlines writes every corrected deadline in one transaction
func (r *Repository) BackfillDeadlines(ctx context.Context, backfills []voting.DeadlineBackfill) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range backfills {
			err := tx.Model(&models.Proposal{}).
				Where("id = ?", b.ProposalID).
				Update("voting_deadline", b.VotingDeadline).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
