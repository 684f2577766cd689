package models

import "time"

// Proposal is a submission from an awarded team that reviewers vote on.
// SubmissionDate and VotingDeadline hold the raw stored text: older rows
// carry human-readable dates or malformed deadlines that are resolved on
// read.
type Proposal struct {
	ID             int       `gorm:"primaryKey" json:"id"`
	Code           string    `gorm:"size:32;index" json:"code"`
	Title          string    `gorm:"not null" json:"title"`
	Summary        string    `gorm:"type:text" json:"summary"`
	TeamName       string    `json:"team_name"`
	SubmittedBy    int       `json:"submitted_by"`
	SubmissionDate string    `gorm:"not null" json:"submission_date"`
	VotingDeadline *string   `json:"voting_deadline"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateProposalRequest struct {
	Title    string `json:"title" binding:"required"`
	Summary  string `json:"summary"`
	TeamName string `json:"team_name"`
}

// VotingResult is a denormalized aggregate of the Vote rows of one
// proposal. It can be rebuilt at any time from the votes table.
type VotingResult struct {
	ProposalID int       `gorm:"primaryKey;autoIncrement:false" json:"proposal_id"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
	NetScore   int       `json:"net_score"`
	VoterCount int       `json:"voter_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}
