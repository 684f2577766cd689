package voting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/metrics"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

type CastVote struct {
	ProposalID int
	UserID     int
	Username   string
	VoteType   string
}

type VoteOutcome struct {
	Vote    models.Vote          `json:"vote"`
	Result  *models.VotingResult `json:"result,omitempty"`
	Changed bool                 `json:"changed"`
}

type VoteService struct {
	proposals ProposalStore
	votes     VoteStore
	durations *Resolver
	deadlines *DeadlineComputer
	metrics   *metrics.Metrics
}

func NewVoteService(proposals ProposalStore, votes VoteStore, durations *Resolver, m *metrics.Metrics) *VoteService {
	return &VoteService{
		proposals: proposals,
		votes:     votes,
		durations: durations,
		deadlines: NewDeadlineComputer(durations),
		metrics:   m,
	}
}

// Cast admits a vote. The insert itself enforces one vote per user id and
// per case-insensitive username; losing that race is reported as
// ErrAlreadyVoted.
func (s *VoteService) Cast(ctx context.Context, req CastVote, now time.Time) (*VoteOutcome, error) {
	voteType := strings.ToLower(strings.TrimSpace(req.VoteType))
	if !models.ValidVoteType(voteType) {
		s.metrics.VoteRejected("invalid_vote_type")
		return nil, ErrInvalidVoteType
	}

	p, err := s.proposals.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal %d: %w", req.ProposalID, err)
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}

	if res := s.deadlines.Resolve(ctx, p.SubmissionDate, p.VotingDeadline, now); res.IsExpired {
		s.metrics.VoteRejected("voting_closed")
		return nil, ErrVotingClosed
	}

	if s.durations.AllowVoteChanges(ctx) {
		outcome, err := s.change(ctx, p.ID, req.UserID, voteType, now)
		if err != nil || outcome != nil {
			return outcome, err
		}
	}

	vote := models.Vote{
		ProposalID:  p.ID,
		UserID:      req.UserID,
		Username:    strings.TrimSpace(req.Username),
		UsernameKey: models.UsernameKey(req.Username),
		VoteType:    voteType,
		VoteDate:    now.UTC(),
	}
	inserted, err := s.votes.InsertVote(ctx, &vote)
	if err != nil {
		return nil, fmt.Errorf("insert vote: %w", err)
	}
	if !inserted {
		s.metrics.VoteRejected("already_voted")
		return nil, ErrAlreadyVoted
	}

	s.metrics.VoteCast(voteType)
	slog.Info("vote recorded", "proposal_id", p.ID, "user_id", req.UserID, "vote_type", voteType)

	return &VoteOutcome{Vote: vote, Result: s.recompute(ctx, p.ID)}, nil
}

// change switches an existing vote when vote changes are allowed. It
// returns nil, nil when the user has no vote yet.
func (s *VoteService) change(ctx context.Context, proposalID, userID int, voteType string, now time.Time) (*VoteOutcome, error) {
	existing, err := s.votes.FindVoteByUser(ctx, proposalID, userID)
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.VoteType == voteType {
		s.metrics.VoteRejected("already_voted")
		return nil, ErrAlreadyVoted
	}

	if err := s.votes.UpdateVoteType(ctx, existing.ID, voteType, now.UTC()); err != nil {
		return nil, fmt.Errorf("update vote: %w", err)
	}
	existing.VoteType = voteType
	existing.VoteDate = now.UTC()

	s.metrics.VoteCast(voteType)
	slog.Info("vote changed", "proposal_id", proposalID, "user_id", userID, "vote_type", voteType)

	return &VoteOutcome{Vote: *existing, Result: s.recompute(ctx, proposalID), Changed: true}, nil
}

func (s *VoteService) recompute(ctx context.Context, proposalID int) *models.VotingResult {
	result, err := s.votes.RecomputeResult(ctx, proposalID)
	if err != nil {
		slog.Warn("failed to update voting result", "proposal_id", proposalID, "error", err)
		return nil
	}
	return result
}

// Votes lists the votes of one proposal.
func (s *VoteService) Votes(ctx context.Context, proposalID int) ([]models.Vote, error) {
	p, err := s.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal %d: %w", proposalID, err)
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}
	return s.votes.ListVotes(ctx, proposalID)
}
