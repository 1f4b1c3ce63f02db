package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"electra/contexts/election-core/vote-admission/domain/entities"
	"electra/contexts/election-core/vote-admission/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory adapter for the admission ports. It backs tests and
// ledger-less dev wiring, and doubles as Clock and IDGenerator.
type Store struct {
	mu sync.RWMutex

	election *entities.Election
	registry map[string]struct{}
	votes    map[string]entities.VoteRecord
	counts   map[entities.CandidateID]uint64
	outbox   map[string]outboxRecord
	order    []string

	fixedNow *time.Time
}

func NewStore() *Store {
	return &Store{
		registry: make(map[string]struct{}),
		votes:    make(map[string]entities.VoteRecord),
		counts:   make(map[entities.CandidateID]uint64),
		outbox:   make(map[string]outboxRecord),
	}
}

// SetNow pins the clock for deterministic tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := now.UTC()
	s.fixedNow = &pinned
}

func (s *Store) Reserve(_ context.Context, voterHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registry[voterHash]; exists {
		return false, nil
	}
	s.registry[voterHash] = struct{}{}
	return true, nil
}

func (s *Store) Release(_ context.Context, voterHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, voterHash)
	return nil
}

func (s *Store) Contains(_ context.Context, voterHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.registry[voterHash]
	return exists, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) GetVoteByVoter(_ context.Context, voterHash string) (entities.VoteRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vote := range s.votes {
		if vote.VoterHash == voterHash {
			return vote, true, nil
		}
	}
	return entities.VoteRecord{}, false, nil
}

func (s *Store) ListVotes(_ context.Context) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.VoteRecord, 0, len(s.votes))
	for _, vote := range s.votes {
		items = append(items, vote)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].VoteID < items[j].VoteID
		}
		return items[i].SubmittedAt.Before(items[j].SubmittedAt)
	})
	return items, nil
}

func (s *Store) Increment(_ context.Context, candidateID entities.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[candidateID]++
	return nil
}

func (s *Store) Snapshot(_ context.Context) (entities.TallySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[entities.CandidateID]uint64, len(s.counts))
	var total uint64
	for candidate, count := range s.counts {
		counts[candidate] = count
		total += count
	}
	return entities.TallySnapshot{
		Seq:     total,
		Counts:  counts,
		TakenAt: s.nowLocked(),
	}, nil
}

func (s *Store) Reset(_ context.Context, candidates []entities.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[entities.CandidateID]uint64, len(candidates))
	for _, candidate := range candidates {
		s.counts[candidate] = 0
	}
	return nil
}

func (s *Store) GetElection(_ context.Context) (entities.Election, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.election == nil {
		return entities.Election{}, false, nil
	}
	return *s.election, true, nil
}

func (s *Store) SaveElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.election = &election
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.outbox[event.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      raw,
			CreatedAt:    s.nowLocked(),
		},
	}
	s.order = append(s.order, event.EventID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.order {
		record, ok := s.outbox[id]
		if !ok || record.published {
			continue
		}
		items = append(items, record.message)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return nil
	}
	record.published = true
	s.outbox[outboxID] = record
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowLocked()
}

func (s *Store) nowLocked() time.Time {
	if s.fixedNow != nil {
		return *s.fixedNow
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.VoterRegistry = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.TallyStore = (*Store)(nil)
var _ ports.ElectionStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
