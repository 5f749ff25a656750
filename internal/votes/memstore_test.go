package votes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guild-portal/backend/internal/models"
)

// memStore is an in-memory Store with the same constraint behavior as the
// Postgres schema.
type memStore struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]models.AccountPublic
	questions map[uuid.UUID]*models.VoteQuestion
	order     []uuid.UUID
	elig      map[uuid.UUID]map[uuid.UUID]*models.EligibilityEntry
	ballots   map[uuid.UUID]map[string]*models.Ballot
	failNext  error
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  map[uuid.UUID]models.AccountPublic{},
		questions: map[uuid.UUID]*models.VoteQuestion{},
		elig:      map[uuid.UUID]map[uuid.UUID]*models.EligibilityEntry{},
		ballots:   map[uuid.UUID]map[string]*models.Ballot{},
	}
}

func (m *memStore) addAccount(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.accounts[id] = models.AccountPublic{ID: id, FullName: name, Email: name + "@example.org", Role: models.RoleMember}
	return id
}

func (m *memStore) injected() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.questions {
		if q.IsActive {
			n++
		}
	}
	return n
}

func (m *memStore) ballotCount(questionID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ballots[questionID])
}

func cloneQuestion(q *models.VoteQuestion) *models.VoteQuestion {
	c := *q
	c.Options = append([]models.VoteOption(nil), q.Options...)
	return &c
}

func (m *memStore) CreateQuestion(_ context.Context, q *models.VoteQuestion, voters []Voter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return err
	}
	for _, v := range voters {
		if _, ok := m.accounts[v.AccountID]; !ok {
			return ErrInvalidAccountIDs
		}
	}
	if q.IsActive {
		for _, other := range m.questions {
			other.IsActive = false
		}
	}
	q.CreatedAt = time.Now()
	for i := range q.Options {
		q.Options[i].ID = uuid.New()
		q.Options[i].QuestionID = q.ID
		q.Options[i].Position = i
	}
	m.questions[q.ID] = cloneQuestion(q)
	m.order = append(m.order, q.ID)
	m.elig[q.ID] = map[uuid.UUID]*models.EligibilityEntry{}
	m.ballots[q.ID] = map[string]*models.Ballot{}
	m.insertVoters(q.ID, voters)
	return nil
}

func (m *memStore) insertVoters(questionID uuid.UUID, voters []Voter) {
	for _, v := range voters {
		if _, ok := m.elig[questionID][v.AccountID]; ok {
			continue
		}
		e := &models.EligibilityEntry{QuestionID: questionID, AccountID: v.AccountID, CreatedAt: time.Now()}
		if b, ok := m.ballots[questionID][v.Hash]; ok {
			e.HasVoted = true
			t := b.UpdatedAt
			e.VotedAt = &t
		}
		m.elig[questionID][v.AccountID] = e
	}
}

func (m *memStore) GetQuestion(_ context.Context, id uuid.UUID) (*models.VoteQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return nil, err
	}
	q, ok := m.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (m *memStore) GetActiveQuestion(context.Context) (*models.VoteQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.questions {
		if q.IsActive {
			return cloneQuestion(q), nil
		}
	}
	return nil, nil
}

func (m *memStore) ActivateQuestion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return ErrQuestionNotFound
	}
	for _, other := range m.questions {
		other.IsActive = false
	}
	q.IsActive = true
	return nil
}

func (m *memStore) CloseQuestion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return ErrQuestionNotFound
	}
	q.IsActive = false
	return nil
}

func (m *memStore) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return ErrQuestionNotFound
	}
	delete(m.questions, id)
	delete(m.elig, id)
	delete(m.ballots, id)
	for i, qid := range m.order {
		if qid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) SetEligibility(_ context.Context, questionID uuid.UUID, voters []Voter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[questionID]; !ok {
		return ErrQuestionNotFound
	}
	keep := map[uuid.UUID]bool{}
	for _, v := range voters {
		if _, ok := m.accounts[v.AccountID]; !ok {
			return ErrInvalidAccountIDs
		}
		keep[v.AccountID] = true
	}
	for id := range m.elig[questionID] {
		if !keep[id] {
			delete(m.elig[questionID], id)
		}
	}
	m.insertVoters(questionID, voters)
	return nil
}

func (m *memStore) GetEligibility(_ context.Context, questionID uuid.UUID) ([]models.EligibleVoter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.EligibleVoter{}
	for id, e := range m.elig[questionID] {
		a := m.accounts[id]
		list = append(list, models.EligibleVoter{ID: id, Name: a.FullName, Email: a.Email, Eligible: true, HasVoted: e.HasVoted})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *memStore) GetEligibilityEntry(_ context.Context, questionID, accountID uuid.UUID) (*models.EligibilityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elig[questionID][accountID]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (m *memStore) CastBallot(_ context.Context, questionID uuid.UUID, voter Voter, optionID uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(); err != nil {
		return err
	}
	q, ok := m.questions[questionID]
	switch {
	case !ok:
		return ErrQuestionNotFound
	case !q.IsActive:
		return ErrQuestionInactive
	case q.ClosedAt(now):
		return ErrQuestionClosed
	case !q.HasOption(optionID):
		return ErrOptionNotFound
	}
	e, ok := m.elig[questionID][voter.AccountID]
	if !ok {
		return ErrNotEligible
	}
	e.HasVoted = true
	if e.VotedAt == nil {
		t := now
		e.VotedAt = &t
	}
	if b, ok := m.ballots[questionID][voter.Hash]; ok {
		b.OptionID = optionID
		b.UpdatedAt = now
		return nil
	}
	m.ballots[questionID][voter.Hash] = &models.Ballot{
		QuestionID: questionID, VoterHash: voter.Hash, OptionID: optionID, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (m *memStore) tallyInput(id uuid.UUID) TallyInput {
	in := TallyInput{Question: cloneQuestion(m.questions[id]), EligibleAccountIDs: []uuid.UUID{}, Ballots: []models.Ballot{}}
	for aid := range m.elig[id] {
		in.EligibleAccountIDs = append(in.EligibleAccountIDs, aid)
	}
	for _, b := range m.ballots[id] {
		in.Ballots = append(in.Ballots, *b)
	}
	return in
}

func (m *memStore) TallyInput(_ context.Context, questionID uuid.UUID) (*TallyInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[questionID]; !ok {
		return nil, ErrQuestionNotFound
	}
	in := m.tallyInput(questionID)
	return &in, nil
}

func (m *memStore) HistoryInputs(context.Context) ([]TallyInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TallyInput, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.tallyInput(m.order[i]))
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.VoteEvent
}

func (p *recordingPublisher) PublishVoteEvent(_ context.Context, ev models.VoteEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
