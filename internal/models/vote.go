package models

import (
	"strings"
	"time"
)

const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

// Vote tracks one reviewer's vote on one proposal. The two unique indexes
// make the insert itself the duplicate check.
type Vote struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	ProposalID  int       `gorm:"not null;uniqueIndex:idx_votes_proposal_user;uniqueIndex:idx_votes_proposal_username" json:"proposal_id"`
	UserID      int       `gorm:"not null;uniqueIndex:idx_votes_proposal_user" json:"user_id"`
	Username    string    `gorm:"not null" json:"username"`
	UsernameKey string    `gorm:"not null;uniqueIndex:idx_votes_proposal_username" json:"-"`
	VoteType    string    `gorm:"size:16;not null" json:"vote_type"`
	VoteDate    time.Time `json:"vote_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsernameKey normalizes a username for duplicate detection.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func ValidVoteType(voteType string) bool {
	return voteType == VoteUp || voteType == VoteDown
}

type CastVoteRequest struct {
	VoteType string `json:"vote_type" binding:"required"`
}
