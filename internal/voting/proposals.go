package voting

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/metrics"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

var proposalCode = regexp.MustCompile(`^PROP-\d{3,}$`)

// ProposalCode returns stored when it is already canonical, otherwise the
// code derived from the proposal's zero-based position.
func ProposalCode(stored string, index int) string {
	if proposalCode.MatchString(stored) {
		return stored
	}
	return fmt.Sprintf("PROP-%03d", index+1)
}

type ProposalView struct {
	ID             int                 `json:"id"`
	Code           string              `json:"code"`
	Title          string              `json:"title"`
	Summary        string              `json:"summary"`
	TeamName       string              `json:"team_name"`
	SubmittedBy    int                 `json:"submitted_by"`
	SubmissionDate string              `json:"submission_date"`
	VotingDeadline string              `json:"voting_deadline"`
	IsExpired      bool                `json:"is_expired"`
	Result         models.VotingResult `json:"result"`
	MeetsQuorum    bool                `json:"meets_quorum"`
}

type ProposalService struct {
	proposals ProposalStore
	votes     VoteStore
	durations *Resolver
	deadlines *DeadlineComputer
	metrics   *metrics.Metrics
}

func NewProposalService(proposals ProposalStore, votes VoteStore, durations *Resolver, m *metrics.Metrics) *ProposalService {
	return &ProposalService{
		proposals: proposals,
		votes:     votes,
		durations: durations,
		deadlines: NewDeadlineComputer(durations),
		metrics:   m,
	}
}

// List resolves every proposal's deadline and results. Deadlines that need
// correcting are written back in one batch; a failed write is logged and
// the computed values are still returned.
func (s *ProposalService) List(ctx context.Context, now time.Time) ([]ProposalView, error) {
	rows, err := s.proposals.ListProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	ids := make([]int, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	results := s.results(ctx, ids)
	minVotes := s.durations.MinVotesRequired(ctx)

	views := make([]ProposalView, 0, len(rows))
	var backfills []DeadlineBackfill
	for i, p := range rows {
		res := s.deadlines.Resolve(ctx, p.SubmissionDate, p.VotingDeadline, now)
		if res.NeedsBackfill {
			backfills = append(backfills, DeadlineBackfill{
				Index:          i,
				ProposalID:     p.ID,
				VotingDeadline: FormatTimestamp(res.VotingDeadline),
			})
		}
		views = append(views, s.view(p, i, res, results[p.ID], minVotes))
	}

	s.backfill(ctx, backfills)
	return views, nil
}

// Get resolves a single proposal the same way List does.
func (s *ProposalService) Get(ctx context.Context, id int, now time.Time) (*ProposalView, error) {
	p, err := s.proposals.GetProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proposal %d: %w", id, err)
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}

	index, err := s.proposals.ProposalPosition(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("locate proposal %d: %w", id, err)
	}

	res := s.deadlines.Resolve(ctx, p.SubmissionDate, p.VotingDeadline, now)
	if res.NeedsBackfill {
		s.backfill(ctx, []DeadlineBackfill{{
			Index:          index,
			ProposalID:     p.ID,
			VotingDeadline: FormatTimestamp(res.VotingDeadline),
		}})
	}

	results := s.results(ctx, []int{id})
	view := s.view(*p, index, res, results[id], s.durations.MinVotesRequired(ctx))
	return &view, nil
}

// Submit creates a proposal whose deadline uses the duration in force right
// now, read past the settings cache.
func (s *ProposalService) Submit(ctx context.Context, submittedBy int, req models.CreateProposalRequest, now time.Time) (*ProposalView, error) {
	days := s.durations.CurrentDurationFresh(ctx)
	submitted := now.UTC()
	deadline := FormatTimestamp(submitted.Add(time.Duration(days) * day))

	p := models.Proposal{
		Title:          req.Title,
		Summary:        req.Summary,
		TeamName:       req.TeamName,
		SubmittedBy:    submittedBy,
		SubmissionDate: FormatTimestamp(submitted),
		VotingDeadline: &deadline,
	}
	if err := s.proposals.CreateProposal(ctx, &p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	index, err := s.proposals.ProposalPosition(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("locate proposal %d: %w", p.ID, err)
	}
	p.Code = ProposalCode("", index)
	if err := s.proposals.AssignCode(ctx, p.ID, p.Code); err != nil {
		slog.Warn("failed to store proposal code", "proposal_id", p.ID, "code", p.Code, "error", err)
	}

	slog.Info("proposal submitted", "proposal_id", p.ID, "code", p.Code, "duration_days", days)

	res := s.deadlines.Resolve(ctx, p.SubmissionDate, p.VotingDeadline, now)
	view := s.view(p, index, res, models.VotingResult{ProposalID: p.ID}, s.durations.MinVotesRequired(ctx))
	return &view, nil
}

// results loads stored aggregates and rebuilds the ones that are missing.
func (s *ProposalService) results(ctx context.Context, ids []int) map[int]models.VotingResult {
	results, err := s.votes.Results(ctx, ids)
	if err != nil {
		slog.Error("failed to load voting results", "error", err)
		return map[int]models.VotingResult{}
	}

	for _, id := range ids {
		if _, ok := results[id]; ok {
			continue
		}
		result, err := s.votes.RecomputeResult(ctx, id)
		if err != nil {
			slog.Warn("failed to rebuild voting result", "proposal_id", id, "error", err)
			continue
		}
		results[id] = *result
	}
	return results
}

func (s *ProposalService) backfill(ctx context.Context, backfills []DeadlineBackfill) {
	if len(backfills) == 0 {
		return
	}
	if err := s.proposals.BackfillDeadlines(ctx, backfills); err != nil {
		s.metrics.Backfill("failed", len(backfills))
		slog.Warn("failed to backfill voting deadlines", "count", len(backfills), "error", err)
		return
	}
	s.metrics.Backfill("persisted", len(backfills))
	slog.Info("backfilled voting deadlines", "count", len(backfills))
}

func (s *ProposalService) view(p models.Proposal, index int, res Resolution, result models.VotingResult, minVotes int) ProposalView {
	result.ProposalID = p.ID
	return ProposalView{
		ID:             p.ID,
		Code:           ProposalCode(p.Code, index),
		Title:          p.Title,
		Summary:        p.Summary,
		TeamName:       p.TeamName,
		SubmittedBy:    p.SubmittedBy,
		SubmissionDate: FormatTimestamp(res.SubmissionDate),
		VotingDeadline: FormatTimestamp(res.VotingDeadline),
		IsExpired:      res.IsExpired,
		Result:         result,
		MeetsQuorum:    result.VoterCount >= minVotes,
	}
}
