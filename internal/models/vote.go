package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteQuestion is a single poll with a fixed option set. At most one is active.
type VoteQuestion struct {
	ID        uuid.UUID    `json:"id"`
	Question  string       `json:"question"`
	CreatedBy *uuid.UUID   `json:"createdBy,omitempty"`
	IsActive  bool         `json:"isActive"`
	ClosesAt  *time.Time   `json:"closesAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Options   []VoteOption `json:"options"`
}

// ClosedAt reports whether the question's deadline has passed at now.
func (q *VoteQuestion) ClosedAt(now time.Time) bool {
	return q.ClosesAt != nil && !now.Before(*q.ClosesAt)
}

// HasOption reports whether optionID belongs to the question.
func (q *VoteQuestion) HasOption(optionID uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// VoteOption belongs to exactly one question; fixed at creation.
type VoteOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"questionId"`
	Label      string    `json:"label"`
	Position   int       `json:"position"`
}

// EligibilityEntry grants one account the right to vote on one question.
// Absence of an entry means the account is ineligible.
type EligibilityEntry struct {
	QuestionID uuid.UUID  `json:"questionId"`
	AccountID  uuid.UUID  `json:"accountId"`
	HasVoted   bool       `json:"hasVoted"`
	VotedAt    *time.Time `json:"votedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// EligibleVoter is an eligibility entry joined with the account it names.
type EligibleVoter struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Eligible bool      `json:"eligible"`
	HasVoted bool      `json:"hasVoted"`
}

// Ballot is the one recorded choice per voter per question, keyed by voter hash.
type Ballot struct {
	QuestionID uuid.UUID `json:"questionId"`
	VoterHash  string    `json:"-"`
	OptionID   uuid.UUID `json:"optionId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OptionResult is one option's share of a tally.
type OptionResult struct {
	ID      uuid.UUID `json:"id"`
	Label   string    `json:"label"`
	Count   int       `json:"count"`
	Percent int       `json:"percent"`
}

// QuestionResults is the tally of a question restricted to currently eligible voters.
type QuestionResults struct {
	Question   *VoteQuestion  `json:"question"`
	TotalVotes int            `json:"totalVotes"`
	Options    []OptionResult `json:"options"`
}

// HistoryItem is a question's live tally plus the eligible pool size at query time.
type HistoryItem struct {
	QuestionResults
	EligibleCount int `json:"eligibleCount"`
}

// ActiveQuestionView is what a caller sees of the currently active question.
type ActiveQuestionView struct {
	Question *VoteQuestion `json:"question"`
	Eligible bool          `json:"eligible"`
	HasVoted bool          `json:"hasVoted"`
}

// Vote lifecycle event types pushed to live subscribers.
const (
	EventQuestionCreated   = "question_created"
	EventQuestionActivated = "question_activated"
	EventQuestionClosed    = "question_closed"
	EventQuestionDeleted   = "question_deleted"
)

// VoteEvent announces a question lifecycle change. It never carries ballot
// data or voter identities.
type VoteEvent struct {
	Type       string        `json:"type"`
	QuestionID uuid.UUID     `json:"questionId"`
	Question   *VoteQuestion `json:"question,omitempty"`
	At         time.Time     `json:"at"`
}
