package votes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/internal/voterhash"
)

// CreateQuestionInput is an administrator's request for a new question.
type CreateQuestionInput struct {
	Question           string
	Options            []string
	EligibleAccountIDs []uuid.UUID
	Activate           bool
	ClosesAt           *time.Time
}

// Service implements question lifecycle, eligibility, ballot casting and tallying.
type Service struct {
	store   Store
	hasher  *voterhash.Hasher
	events  EventPublisher
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewService creates the voting service. timeout bounds the storage work of
// each call; events may be nil.
func NewService(store Store, hasher *voterhash.Hasher, events EventPublisher, timeout time.Duration, logger *zap.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		events:  events,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) voters(questionID uuid.UUID, accountIDs []uuid.UUID) []Voter {
	seen := make(map[uuid.UUID]struct{}, len(accountIDs))
	out := make([]Voter, 0, len(accountIDs))
	for _, id := range accountIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Voter{AccountID: id, Hash: s.hasher.Digest(id, questionID)})
	}
	return out
}

func (s *Service) publish(ctx context.Context, typ string, id uuid.UUID, q *models.VoteQuestion) {
	s.events.PublishVoteEvent(ctx, models.VoteEvent{Type: typ, QuestionID: id, Question: q, At: s.now().UTC()})
}

// CreateQuestion validates and stores a new question. With Activate set,
// every other question is deactivated in the same transaction.
func (s *Service) CreateQuestion(ctx context.Context, creator uuid.UUID, in CreateQuestionInput) (*models.VoteQuestion, error) {
	text, err := NormalizeQuestion(in.Question)
	if err != nil {
		return nil, err
	}
	labels, err := NormalizeOptions(in.Options)
	if err != nil {
		return nil, err
	}
	if in.ClosesAt != nil && !in.ClosesAt.After(s.now()) {
		return nil, ErrInvalidClosesAt
	}
	for _, id := range in.EligibleAccountIDs {
		if id == uuid.Nil {
			return nil, ErrInvalidAccountIDs
		}
	}

	q := &models.VoteQuestion{
		Question: text,
		IsActive: in.Activate,
		ClosesAt: in.ClosesAt,
		Options:  make([]models.VoteOption, len(labels)),
	}
	if creator != uuid.Nil {
		q.CreatedBy = &creator
	}
	for i, l := range labels {
		q.Options[i] = models.VoteOption{Label: l, Position: i}
	}

	// The id is chosen here so initial voters can be hashed before the insert.
	q.ID = uuid.New()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.CreateQuestion(ctx, q, s.voters(q.ID, in.EligibleAccountIDs)); err != nil {
		return nil, s.internal(err, "create question")
	}

	s.logger.Info("vote question created",
		zap.String("question_id", q.ID.String()),
		zap.Bool("active", q.IsActive),
		zap.Int("options", len(q.Options)),
		zap.Int("eligible", len(in.EligibleAccountIDs)),
	)
	s.publish(ctx, models.EventQuestionCreated, q.ID, q)
	if q.IsActive {
		s.publish(ctx, models.EventQuestionActivated, q.ID, q)
	}
	return q, nil
}

// internal passes domain errors through and logs anything else.
func (s *Service) internal(err error, op string, fields ...zap.Field) error {
	if _, _, ok := Classify(err); ok {
		return err
	}
	s.logger.Error(op, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, err)
}

// GetQuestion returns a question with its options.
func (s *Service) GetQuestion(ctx context.Context, id uuid.UUID) (*models.VoteQuestion, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.internal(err, "get question", zap.String("question_id", id.String()))
	}
	return q, nil
}

// ActivateQuestion makes id the only active question. A question whose
// deadline has passed cannot be activated.
func (s *Service) ActivateQuestion(ctx context.Context, id uuid.UUID) (*models.VoteQuestion, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.internal(err, "get question", zap.String("question_id", id.String()))
	}
	if q.ClosedAt(s.now()) {
		return nil, ErrQuestionClosed
	}
	if err := s.store.ActivateQuestion(ctx, id); err != nil {
		return nil, s.internal(err, "activate question", zap.String("question_id", id.String()))
	}
	q.IsActive = true
	s.logger.Info("vote question activated", zap.String("question_id", id.String()))
	s.publish(ctx, models.EventQuestionActivated, id, q)
	return q, nil
}

// CloseQuestion deactivates a question. Its ballots and eligibility are kept
// for the history view. Closing an inactive question is a no-op.
func (s *Service) CloseQuestion(ctx context.Context, id uuid.UUID) (*models.VoteQuestion, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, s.internal(err, "get question", zap.String("question_id", id.String()))
	}
	if !q.IsActive {
		return q, nil
	}
	if err := s.store.CloseQuestion(ctx, id); err != nil {
		return nil, s.internal(err, "close question", zap.String("question_id", id.String()))
	}
	q.IsActive = false
	s.logger.Info("vote question closed", zap.String("question_id", id.String()))
	s.publish(ctx, models.EventQuestionClosed, id, q)
	return q, nil
}

// DeleteQuestion removes a question with its options, eligibility and ballots.
func (s *Service) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return s.internal(err, "delete question", zap.String("question_id", id.String()))
	}
	s.logger.Warn("vote question deleted", zap.String("question_id", id.String()))
	s.publish(ctx, models.EventQuestionDeleted, id, nil)
	return nil
}

// SetEligibility replaces the eligible pool. Accounts left in the pool keep
// their vote state; removed accounts lose their entry but not their ballot.
func (s *Service) SetEligibility(ctx context.Context, questionID uuid.UUID, accountIDs []uuid.UUID) error {
	for _, id := range accountIDs {
		if id == uuid.Nil {
			return ErrInvalidAccountIDs
		}
	}
	voters := s.voters(questionID, accountIDs)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.SetEligibility(ctx, questionID, voters); err != nil {
		return s.internal(err, "set eligibility", zap.String("question_id", questionID.String()))
	}
	s.logger.Info("vote eligibility set",
		zap.String("question_id", questionID.String()),
		zap.Int("eligible", len(voters)),
	)
	return nil
}

// GetEligibility lists the eligible pool with each account's vote status.
func (s *Service) GetEligibility(ctx context.Context, questionID uuid.UUID) ([]models.EligibleVoter, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.store.GetQuestion(ctx, questionID); err != nil {
		return nil, s.internal(err, "get question", zap.String("question_id", questionID.String()))
	}
	list, err := s.store.GetEligibility(ctx, questionID)
	if err != nil {
		return nil, s.internal(err, "get eligibility", zap.String("question_id", questionID.String()))
	}
	return list, nil
}

// CastVote records or replaces the account's ballot. Checks run in order:
// question exists, is active, is before its deadline, owns the option, and
// the account is eligible. A repeat vote overwrites the earlier choice.
func (s *Service) CastVote(ctx context.Context, questionID, accountID, optionID uuid.UUID) error {
	if optionID == uuid.Nil {
		return ErrOptionRequired
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return s.internal(err, "get question", zap.String("question_id", questionID.String()))
	}
	now := s.now()
	switch {
	case !q.IsActive:
		return ErrQuestionInactive
	case q.ClosedAt(now):
		return ErrQuestionClosed
	case !q.HasOption(optionID):
		return ErrOptionNotFound
	}

	entry, err := s.store.GetEligibilityEntry(ctx, questionID, accountID)
	if err != nil {
		return s.internal(err, "get eligibility", zap.String("question_id", questionID.String()))
	}
	if entry == nil {
		return ErrNotEligible
	}

	voter := Voter{AccountID: accountID, Hash: s.hasher.Digest(accountID, questionID)}
	if err := s.store.CastBallot(ctx, questionID, voter, optionID, now); err != nil {
		return s.internal(err, "cast ballot", zap.String("question_id", questionID.String()))
	}
	return nil
}

// ActiveQuestion returns the active question, if any. For a signed-in
// caller it also reports eligibility and vote status.
func (s *Service) ActiveQuestion(ctx context.Context, accountID uuid.UUID) (*models.ActiveQuestionView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.store.GetActiveQuestion(ctx)
	if err != nil {
		return nil, s.internal(err, "get active question")
	}
	view := &models.ActiveQuestionView{Question: q}
	if q == nil || accountID == uuid.Nil {
		return view, nil
	}
	entry, err := s.store.GetEligibilityEntry(ctx, q.ID, accountID)
	if err != nil {
		return nil, s.internal(err, "get eligibility", zap.String("question_id", q.ID.String()))
	}
	if entry != nil {
		view.Eligible = true
		view.HasVoted = entry.HasVoted
	}
	return view, nil
}

// Results tallies a question over ballots of currently eligible voters.
func (s *Service) Results(ctx context.Context, questionID uuid.UUID) (*models.QuestionResults, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	in, err := s.store.TallyInput(ctx, questionID)
	if err != nil {
		return nil, s.internal(err, "load tally", zap.String("question_id", questionID.String()))
	}
	res := s.tally(in)
	return &res, nil
}

// History tallies every question, newest first, with the current pool size.
func (s *Service) History(ctx context.Context) ([]models.HistoryItem, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	inputs, err := s.store.HistoryInputs(ctx)
	if err != nil {
		return nil, s.internal(err, "load history")
	}
	items := make([]models.HistoryItem, 0, len(inputs))
	for i := range inputs {
		items = append(items, models.HistoryItem{
			QuestionResults: s.tally(&inputs[i]),
			EligibleCount:   len(inputs[i].EligibleAccountIDs),
		})
	}
	return items, nil
}

func (s *Service) tally(in *TallyInput) models.QuestionResults {
	eligible := s.hasher.DigestAll(in.EligibleAccountIDs, in.Question.ID)
	return Tally(in.Question, in.Ballots, eligible)
}
