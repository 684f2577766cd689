package voting

import (
	"context"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

// DeadlineBackfill is one corrected deadline to write back. Index is the
// proposal's position in the listing it was computed for.
type DeadlineBackfill struct {
	Index          int
	ProposalID     int
	VotingDeadline string
}

type ProposalStore interface {
	// ListProposals returns every proposal in submission order.
	ListProposals(ctx context.Context) ([]models.Proposal, error)
	// GetProposal returns nil, nil when id does not exist.
	GetProposal(ctx context.Context, id int) (*models.Proposal, error)
	// ProposalPosition is the zero-based index of id in submission order.
	ProposalPosition(ctx context.Context, id int) (int, error)
	CreateProposal(ctx context.Context, p *models.Proposal) error
	AssignCode(ctx context.Context, id int, code string) error
	BackfillDeadlines(ctx context.Context, backfills []DeadlineBackfill) error
}

type VoteStore interface {
	// InsertVote stores v unless the proposal already has a vote from the
	// same user id or username. It reports false on such a conflict.
	InsertVote(ctx context.Context, v *models.Vote) (bool, error)
	// FindVoteByUser returns nil, nil when the user has not voted.
	FindVoteByUser(ctx context.Context, proposalID, userID int) (*models.Vote, error)
	UpdateVoteType(ctx context.Context, voteID int, voteType string, at time.Time) error
	ListVotes(ctx context.Context, proposalID int) ([]models.Vote, error)
	// RecomputeResult rebuilds and stores the aggregate for one proposal.
	RecomputeResult(ctx context.Context, proposalID int) (*models.VotingResult, error)
	// Results returns the stored aggregates that exist for ids.
	Results(ctx context.Context, ids []int) (map[int]models.VotingResult, error)
}
