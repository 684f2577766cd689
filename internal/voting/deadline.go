package voting

import (
	"context"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Resolution is the effective voting window of one proposal.
type Resolution struct {
	SubmissionDate time.Time
	VotingDeadline time.Time
	IsExpired      bool
	// NeedsBackfill marks a deadline that should be written back to storage.
	NeedsBackfill bool
}

// DeadlineComputer derives a proposal's deadline from its stored dates and
// the duration history.
type DeadlineComputer struct {
	durations *Resolver
}

func NewDeadlineComputer(durations *Resolver) *DeadlineComputer {
	return &DeadlineComputer{durations: durations}
}

// Resolve never rejects a proposal: an unparsable submission date becomes
// now, and an unparsable stored deadline is recomputed and flagged.
func (d *DeadlineComputer) Resolve(ctx context.Context, submissionRaw string, storedDeadline *string, now time.Time) Resolution {
	submitted, submittedOK := ParseTimestamp(submissionRaw)
	if !submittedOK {
		submitted = now.UTC()
	}

	res := Resolution{SubmissionDate: submitted}

	switch {
	case storedDeadline != nil && strings.TrimSpace(*storedDeadline) != "":
		if deadline, ok := ParseTimestamp(*storedDeadline); ok {
			res.VotingDeadline = deadline
		} else {
			res.VotingDeadline = d.computed(ctx, submitted)
			res.NeedsBackfill = true
		}
	default:
		res.VotingDeadline = d.computed(ctx, submitted)
		// Without a recorded timeline the duration is a guess; persisting
		// it would freeze a wrong deadline once a real change is logged.
		res.NeedsBackfill = submittedOK && d.durations.HasHistory(ctx)
	}

	res.IsExpired = now.After(res.VotingDeadline)
	return res
}

func (d *DeadlineComputer) computed(ctx context.Context, submitted time.Time) time.Time {
	return submitted.Add(time.Duration(d.durations.DurationAt(ctx, submitted)) * day)
}
