package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("activate: %w", &pgconn.PgError{Code: "23505", ConstraintName: "vote_questions_single_active"})

	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(err, "vote_questions_single_active"))
	assert.False(t, IsUniqueViolation(err, "vote_options_question_id_label_key"))
	assert.False(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "vote_eligibility_account_id_fkey"}
	assert.True(t, IsForeignKeyViolation(err))
	assert.True(t, IsForeignKeyViolation(err, "vote_eligibility_account_id_fkey"))
	assert.False(t, IsUniqueViolation(err))
}

func TestMigrationNamesAreOrdered(t *testing.T) {
	names, err := migrationNames()
	assert.NoError(t, err)
	assert.Equal(t, []string{"001_accounts.sql", "002_voting.sql"}, names)
}
