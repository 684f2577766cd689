package voting

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

type fakeSettings struct {
	values  map[string]string
	fresh   map[string]string
	history []models.SettingHistoryEntry
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) Current(ctx context.Context, key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeSettings) CurrentFresh(ctx context.Context, key string) (string, bool) {
	if v, ok := f.fresh[key]; ok {
		return v, true
	}
	return f.Current(ctx, key)
}

func (f *fakeSettings) History(ctx context.Context, key string) []models.SettingHistoryEntry {
	var out []models.SettingHistoryEntry
	for _, e := range f.history {
		if e.SettingKey == key {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSettings) addChange(old *string, newValue string, at time.Time) {
	f.history = append(f.history, models.SettingHistoryEntry{
		SettingKey:  models.SettingVotingDurationDays,
		OldValue:    old,
		NewValue:    newValue,
		EffectiveAt: at,
	})
}

type memoryProposals struct {
	rows         []models.Proposal
	backfilled   []DeadlineBackfill
	failBackfill bool
}

func (m *memoryProposals) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	out := append([]models.Proposal(nil), m.rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryProposals) GetProposal(ctx context.Context, id int) (*models.Proposal, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			p := m.rows[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memoryProposals) ProposalPosition(ctx context.Context, id int) (int, error) {
	n := 0
	for _, p := range m.rows {
		if p.ID < id {
			n++
		}
	}
	return n, nil
}

func (m *memoryProposals) CreateProposal(ctx context.Context, p *models.Proposal) error {
	p.ID = len(m.rows) + 1
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memoryProposals) AssignCode(ctx context.Context, id int, code string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Code = code
		}
	}
	return nil
}

func (m *memoryProposals) BackfillDeadlines(ctx context.Context, backfills []DeadlineBackfill) error {
	if m.failBackfill {
		return errors.New("sheet locked")
	}
	m.backfilled = append(m.backfilled, backfills...)
	for _, b := range backfills {
		for i := range m.rows {
			if m.rows[i].ID == b.ProposalID {
				d := b.VotingDeadline
				m.rows[i].VotingDeadline = &d
			}
		}
	}
	return nil
}

type memoryVotes struct {
	mu      sync.Mutex
	votes   []models.Vote
	results map[int]models.VotingResult
}

func newMemoryVotes() *memoryVotes {
	return &memoryVotes{results: map[int]models.VotingResult{}}
}

func (m *memoryVotes) InsertVote(ctx context.Context, v *models.Vote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.votes {
		if existing.ProposalID == v.ProposalID &&
			(existing.UserID == v.UserID || existing.UsernameKey == v.UsernameKey) {
			return false, nil
		}
	}
	v.ID = len(m.votes) + 1
	m.votes = append(m.votes, *v)
	return true, nil
}

func (m *memoryVotes) FindVoteByUser(ctx context.Context, proposalID, userID int) (*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes {
		if v.ProposalID == proposalID && v.UserID == userID {
			vote := v
			return &vote, nil
		}
	}
	return nil, nil
}

func (m *memoryVotes) UpdateVoteType(ctx context.Context, voteID int, voteType string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.votes {
		if m.votes[i].ID == voteID {
			m.votes[i].VoteType = voteType
			m.votes[i].VoteDate = at
		}
	}
	return nil
}

func (m *memoryVotes) ListVotes(ctx context.Context, proposalID int) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Vote
	for _, v := range m.votes {
		if v.ProposalID == proposalID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryVotes) RecomputeResult(ctx context.Context, proposalID int) (*models.VotingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := models.VotingResult{ProposalID: proposalID}
	for _, v := range m.votes {
		if v.ProposalID != proposalID {
			continue
		}
		r.VoterCount++
		if v.VoteType == models.VoteUp {
			r.Upvotes++
		} else {
			r.Downvotes++
		}
	}
	r.NetScore = r.Upvotes - r.Downvotes
	m.results[proposalID] = r
	return &r, nil
}

func (m *memoryVotes) Results(ctx context.Context, ids []int) (map[int]models.VotingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]models.VotingResult{}
	for _, id := range ids {
		if r, ok := m.results[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func utc(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}
