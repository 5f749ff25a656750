package votes

import (
	"github.com/google/uuid"

	"github.com/guild-portal/backend/internal/models"
)

// Percent returns count/total as a whole percentage rounded half-up, or 0
// when total is 0. Options are rounded independently so a tally's percents
// need not sum to 100.
func Percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return (count*200 + total) / (2 * total)
}

// Tally counts ballots whose voter hash is in eligible. Ballots from revoked
// voters are skipped, not deleted, so restoring eligibility restores them.
func Tally(q *models.VoteQuestion, ballots []models.Ballot, eligible map[string]uuid.UUID) models.QuestionResults {
	counts := make(map[uuid.UUID]int, len(q.Options))
	total := 0
	for _, b := range ballots {
		if _, ok := eligible[b.VoterHash]; !ok {
			continue
		}
		if !q.HasOption(b.OptionID) {
			continue
		}
		counts[b.OptionID]++
		total++
	}

	options := make([]models.OptionResult, 0, len(q.Options))
	for _, o := range q.Options {
		n := counts[o.ID]
		options = append(options, models.OptionResult{
			ID:      o.ID,
			Label:   o.Label,
			Count:   n,
			Percent: Percent(n, total),
		})
	}
	return models.QuestionResults{Question: q, TotalVotes: total, Options: options}
}
