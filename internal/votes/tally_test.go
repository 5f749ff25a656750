package votes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/guild-portal/backend/internal/models"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		count, total, want int
	}{
		{0, 0, 0},
		{1, 2, 50},
		{2, 2, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds up
		{1, 200, 1},
		{0, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.count, tt.total), "%d/%d", tt.count, tt.total)
	}
}

func TestTallyIndependentRounding(t *testing.T) {
	q := &models.VoteQuestion{ID: uuid.New()}
	for _, l := range []string{"A", "B", "C"} {
		q.Options = append(q.Options, models.VoteOption{ID: uuid.New(), Label: l})
	}
	eligible := map[string]uuid.UUID{}
	var ballots []models.Ballot
	for i, o := range q.Options {
		h := string(rune('a' + i))
		eligible[h] = uuid.New()
		ballots = append(ballots, models.Ballot{VoterHash: h, OptionID: o.ID})
	}

	res := Tally(q, ballots, eligible)
	assert.Equal(t, 3, res.TotalVotes)
	sum := 0
	for _, o := range res.Options {
		assert.Equal(t, 33, o.Percent)
		sum += o.Percent
	}
	assert.Equal(t, 99, sum)
}

func TestTallySkipsIneligibleAndForeignBallots(t *testing.T) {
	red, blue := uuid.New(), uuid.New()
	q := &models.VoteQuestion{
		ID:      uuid.New(),
		Options: []models.VoteOption{{ID: red, Label: "Red"}, {ID: blue, Label: "Blue"}},
	}
	ballots := []models.Ballot{
		{VoterHash: "a", OptionID: red},
		{VoterHash: "b", OptionID: blue},
		{VoterHash: "revoked", OptionID: red},
		{VoterHash: "c", OptionID: uuid.New()},
	}
	eligible := map[string]uuid.UUID{"a": uuid.New(), "b": uuid.New(), "c": uuid.New()}

	res := Tally(q, ballots, eligible)
	assert.Equal(t, 2, res.TotalVotes)
	assert.Equal(t, []models.OptionResult{
		{ID: red, Label: "Red", Count: 1, Percent: 50},
		{ID: blue, Label: "Blue", Count: 1, Percent: 50},
	}, res.Options)
}

func TestTallyNoBallots(t *testing.T) {
	q := &models.VoteQuestion{ID: uuid.New(), Options: []models.VoteOption{{ID: uuid.New(), Label: "Yes"}, {ID: uuid.New(), Label: "No"}}}
	res := Tally(q, nil, nil)
	assert.Zero(t, res.TotalVotes)
	for _, o := range res.Options {
		assert.Zero(t, o.Count)
		assert.Zero(t, o.Percent)
	}
}
