package votes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guild-portal/backend/internal/models"
)

// Voter pairs an account with its voter hash for one question.
type Voter struct {
	AccountID uuid.UUID
	Hash      string
}

// TallyInput is everything needed to tally one question, read from a single snapshot.
type TallyInput struct {
	Question           *models.VoteQuestion
	EligibleAccountIDs []uuid.UUID
	Ballots            []models.Ballot
}

// Store is the transactional storage behind the voting service. Every method
// that writes more than one row does so in a single transaction.
type Store interface {
	// CreateQuestion inserts q (with its caller-chosen ID) along with its
	// options and initial voters. When q.IsActive is set every other question
	// is deactivated first. Option IDs and timestamps are filled in on q.
	CreateQuestion(ctx context.Context, q *models.VoteQuestion, voters []Voter) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.VoteQuestion, error)
	// GetActiveQuestion returns nil, nil when no question is active.
	GetActiveQuestion(ctx context.Context) (*models.VoteQuestion, error)
	ActivateQuestion(ctx context.Context, id uuid.UUID) error
	CloseQuestion(ctx context.Context, id uuid.UUID) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error

	// SetEligibility replaces the question's eligible pool with voters.
	SetEligibility(ctx context.Context, questionID uuid.UUID, voters []Voter) error
	GetEligibility(ctx context.Context, questionID uuid.UUID) ([]models.EligibleVoter, error)
	// GetEligibilityEntry returns nil, nil when the account is not eligible.
	GetEligibilityEntry(ctx context.Context, questionID, accountID uuid.UUID) (*models.EligibilityEntry, error)

	// CastBallot upserts the voter's ballot and marks the eligibility entry
	// as voted. It fails with ErrNotEligible if the entry is gone.
	CastBallot(ctx context.Context, questionID uuid.UUID, voter Voter, optionID uuid.UUID, now time.Time) error

	TallyInput(ctx context.Context, questionID uuid.UUID) (*TallyInput, error)
	HistoryInputs(ctx context.Context) ([]TallyInput, error)
}

// EventPublisher receives lifecycle events after the change is committed.
type EventPublisher interface {
	PublishVoteEvent(ctx context.Context, ev models.VoteEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishVoteEvent(context.Context, models.VoteEvent) {}
