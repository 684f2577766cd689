package voting

import "errors"

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrVotingClosed     = errors.New("voting period has ended for this proposal")
	ErrAlreadyVoted     = errors.New("you have already voted on this proposal")
	ErrInvalidVoteType  = errors.New("vote type must be upvote or downvote")
)
