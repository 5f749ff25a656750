package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/database"
)

const (
	singleActiveIndex    = "vote_questions_single_active"
	eligibilityAccountFK = "vote_eligibility_account_fkey"
	ballotOptionFK       = "vote_ballots_option_fkey"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a votes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const questionColumns = `id, question, created_by, is_active, closes_at, created_at`

func scanQuestion(row pgx.Row) (*models.VoteQuestion, error) {
	var q models.VoteQuestion
	if err := row.Scan(&q.ID, &q.Question, &q.CreatedBy, &q.IsActive, &q.ClosesAt, &q.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	q.Options = []models.VoteOption{}
	return &q, nil
}

// CreateQuestion implements Store.
func (r *Repository) CreateQuestion(ctx context.Context, q *models.VoteQuestion, voters []Voter) error {
	err := database.InTx(ctx, r.pool, database.ReadCommitted, func(tx pgx.Tx) error {
		if q.IsActive {
			if _, err := tx.Exec(ctx, `UPDATE vote_questions SET is_active = FALSE WHERE is_active`); err != nil {
				return fmt.Errorf("deactivate questions: %w", err)
			}
		}

		const insertQuestion = `INSERT INTO vote_questions (id, question, created_by, is_active, closes_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`
		if err := tx.QueryRow(ctx, insertQuestion, q.ID, q.Question, q.CreatedBy, q.IsActive, q.ClosesAt).
			Scan(&q.CreatedAt); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range q.Options {
			o := &q.Options[i]
			o.QuestionID = q.ID
			o.Position = i
			batch.Queue(`INSERT INTO vote_options (question_id, label, position) VALUES ($1, $2, $3) RETURNING id`,
				q.ID, o.Label, o.Position).QueryRow(func(row pgx.Row) error {
				return row.Scan(&o.ID)
			})
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert options: %w", err)
		}

		return insertVoters(ctx, tx, q.ID, voters)
	})
	return classifyWrite(err)
}

// insertVoters adds eligibility rows that do not exist yet. has_voted is
// derived from an existing ballot so a re-added voter keeps their vote.
func insertVoters(ctx context.Context, tx pgx.Tx, questionID uuid.UUID, voters []Voter) error {
	if len(voters) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(voters))
	hashes := make([]string, len(voters))
	for i, v := range voters {
		ids[i] = v.AccountID
		hashes[i] = v.Hash
	}
	const q = `INSERT INTO vote_eligibility (question_id, account_id, has_voted, voted_at)
		SELECT $1, t.account_id, b.voter_hash IS NOT NULL, b.updated_at
		FROM unnest($2::uuid[], $3::text[]) AS t(account_id, voter_hash)
		LEFT JOIN vote_ballots b ON b.question_id = $1 AND b.voter_hash = t.voter_hash
		ON CONFLICT (question_id, account_id) DO NOTHING`
	if _, err := tx.Exec(ctx, q, questionID, ids, hashes); err != nil {
		return fmt.Errorf("insert eligibility: %w", err)
	}
	return nil
}

// classifyWrite turns constraint violations into domain errors.
func classifyWrite(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, singleActiveIndex):
		return ErrActivationConflict
	case database.IsForeignKeyViolation(err, eligibilityAccountFK):
		return ErrInvalidAccountIDs
	case database.IsForeignKeyViolation(err, ballotOptionFK):
		return ErrOptionNotFound
	}
	return err
}

// GetQuestion implements Store.
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.VoteQuestion, error) {
	return getQuestion(ctx, r.pool, id)
}

func getQuestion(ctx context.Context, db querier, id uuid.UUID) (*models.VoteQuestion, error) {
	q, err := scanQuestion(db.QueryRow(ctx, `SELECT `+questionColumns+` FROM vote_questions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadOptions(ctx, db, []*models.VoteQuestion{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// loadOptions fills Options on each question in position order.
func loadOptions(ctx context.Context, db querier, questions []*models.VoteQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.VoteQuestion, len(questions))
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
		ids = append(ids, q.ID)
	}
	rows, err := db.Query(ctx, `SELECT id, question_id, label, position FROM vote_options
		WHERE question_id = ANY($1) ORDER BY question_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o models.VoteOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.Position); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if q, ok := byID[o.QuestionID]; ok {
			q.Options = append(q.Options, o)
		}
	}
	return rows.Err()
}

// GetActiveQuestion implements Store.
func (r *Repository) GetActiveQuestion(ctx context.Context) (*models.VoteQuestion, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM vote_questions WHERE is_active`))
	if errors.Is(err, ErrQuestionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active question: %w", err)
	}
	if err := loadOptions(ctx, r.pool, []*models.VoteQuestion{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// ActivateQuestion implements Store.
func (r *Repository) ActivateQuestion(ctx context.Context, id uuid.UUID) error {
	err := database.InTx(ctx, r.pool, database.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE vote_questions SET is_active = FALSE WHERE is_active AND id <> $1`, id); err != nil {
			return fmt.Errorf("deactivate questions: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE vote_questions SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("activate question: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrQuestionNotFound
		}
		return nil
	})
	return classifyWrite(err)
}

// CloseQuestion implements Store.
func (r *Repository) CloseQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vote_questions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("close question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// DeleteQuestion implements Store. Options, eligibility and ballots cascade.
func (r *Repository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vote_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// SetEligibility implements Store. Entries outside voters are deleted, new
// ones inserted, and entries present in both are left untouched.
func (r *Repository) SetEligibility(ctx context.Context, questionID uuid.UUID, voters []Voter) error {
	keep := make([]uuid.UUID, 0, len(voters))
	for _, v := range voters {
		keep = append(keep, v.AccountID)
	}
	err := database.InTx(ctx, r.pool, database.ReadCommitted, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM vote_questions WHERE id = $1 FOR NO KEY UPDATE`, questionID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock question: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM vote_eligibility
			WHERE question_id = $1 AND NOT (account_id = ANY($2::uuid[]))`, questionID, keep); err != nil {
			return fmt.Errorf("revoke eligibility: %w", err)
		}
		return insertVoters(ctx, tx, questionID, voters)
	})
	return classifyWrite(err)
}

// GetEligibility implements Store.
func (r *Repository) GetEligibility(ctx context.Context, questionID uuid.UUID) ([]models.EligibleVoter, error) {
	const q = `SELECT a.id, a.full_name, a.email, e.has_voted
		FROM vote_eligibility e
		JOIN accounts a ON a.id = e.account_id
		WHERE e.question_id = $1
		ORDER BY a.full_name, a.email`
	rows, err := r.pool.Query(ctx, q, questionID)
	if err != nil {
		return nil, fmt.Errorf("list eligibility: %w", err)
	}
	defer rows.Close()
	list := []models.EligibleVoter{}
	for rows.Next() {
		v := models.EligibleVoter{Eligible: true}
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.HasVoted); err != nil {
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// GetEligibilityEntry implements Store.
func (r *Repository) GetEligibilityEntry(ctx context.Context, questionID, accountID uuid.UUID) (*models.EligibilityEntry, error) {
	const q = `SELECT question_id, account_id, has_voted, voted_at, created_at
		FROM vote_eligibility WHERE question_id = $1 AND account_id = $2`
	var e models.EligibilityEntry
	err := r.pool.QueryRow(ctx, q, questionID, accountID).
		Scan(&e.QuestionID, &e.AccountID, &e.HasVoted, &e.VotedAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get eligibility: %w", err)
	}
	return &e, nil
}

// CastBallot implements Store. The question row is share-locked so a
// concurrent close or delete waits, and the eligibility row is updated
// first so a concurrent revocation either precedes the vote (not_eligible)
// or follows it.
func (r *Repository) CastBallot(ctx context.Context, questionID uuid.UUID, voter Voter, optionID uuid.UUID, now time.Time) error {
	err := database.InTx(ctx, r.pool, database.ReadCommitted, func(tx pgx.Tx) error {
		var active bool
		var closesAt *time.Time
		err := tx.QueryRow(ctx, `SELECT is_active, closes_at FROM vote_questions WHERE id = $1 FOR SHARE`, questionID).
			Scan(&active, &closesAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock question: %w", err)
		}
		if !active {
			return ErrQuestionInactive
		}
		if closesAt != nil && !now.Before(*closesAt) {
			return ErrQuestionClosed
		}

		var voted bool
		err = tx.QueryRow(ctx, `UPDATE vote_eligibility
			SET has_voted = TRUE, voted_at = COALESCE(voted_at, $3)
			WHERE question_id = $1 AND account_id = $2
			RETURNING has_voted`, questionID, voter.AccountID, now).Scan(&voted)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotEligible
		}
		if err != nil {
			return fmt.Errorf("mark voted: %w", err)
		}

		const upsert = `INSERT INTO vote_ballots (question_id, voter_hash, option_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (question_id, voter_hash)
			DO UPDATE SET option_id = EXCLUDED.option_id, updated_at = EXCLUDED.updated_at`
		if _, err := tx.Exec(ctx, upsert, questionID, voter.Hash, optionID, now); err != nil {
			return fmt.Errorf("upsert ballot: %w", err)
		}
		return nil
	})
	return classifyWrite(err)
}

// TallyInput implements Store.
func (r *Repository) TallyInput(ctx context.Context, questionID uuid.UUID) (*TallyInput, error) {
	var in *TallyInput
	err := database.InTx(ctx, r.pool, database.SnapshotRead, func(tx pgx.Tx) error {
		q, err := getQuestion(ctx, tx, questionID)
		if err != nil {
			return err
		}
		inputs, err := loadTallyInputs(ctx, tx, []*models.VoteQuestion{q})
		if err != nil {
			return err
		}
		in = &inputs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// HistoryInputs implements Store. Questions come newest first.
func (r *Repository) HistoryInputs(ctx context.Context) ([]TallyInput, error) {
	var out []TallyInput
	err := database.InTx(ctx, r.pool, database.SnapshotRead, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+questionColumns+` FROM vote_questions ORDER BY created_at DESC, id`)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		questions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.VoteQuestion, error) {
			return scanQuestion(row)
		})
		if err != nil {
			return fmt.Errorf("scan questions: %w", err)
		}
		if err := loadOptions(ctx, tx, questions); err != nil {
			return err
		}
		out, err = loadTallyInputs(ctx, tx, questions)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadTallyInputs reads eligibility and ballots for the given questions.
func loadTallyInputs(ctx context.Context, db querier, questions []*models.VoteQuestion) ([]TallyInput, error) {
	out := make([]TallyInput, len(questions))
	index := make(map[uuid.UUID]int, len(questions))
	ids := make([]uuid.UUID, len(questions))
	for i, q := range questions {
		out[i] = TallyInput{Question: q, EligibleAccountIDs: []uuid.UUID{}, Ballots: []models.Ballot{}}
		index[q.ID] = i
		ids[i] = q.ID
	}
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.Query(ctx, `SELECT question_id, account_id FROM vote_eligibility WHERE question_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load eligibility: %w", err)
	}
	for rows.Next() {
		var qid, aid uuid.UUID
		if err := rows.Scan(&qid, &aid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		i := index[qid]
		out[i].EligibleAccountIDs = append(out[i].EligibleAccountIDs, aid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load eligibility: %w", err)
	}

	rows, err = db.Query(ctx, `SELECT question_id, voter_hash, option_id, created_at, updated_at
		FROM vote_ballots WHERE question_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load ballots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b models.Ballot
		if err := rows.Scan(&b.QuestionID, &b.VoterHash, &b.OptionID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		i := index[b.QuestionID]
		out[i].Ballots = append(out[i].Ballots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ballots: %w", err)
	}
	return out, nil
}
