package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"electra/contexts/election-core/identity-gate/domain/entities"
	"electra/contexts/election-core/identity-gate/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing the gate in tests and dev wiring.
// It doubles as Clock, IDGenerator, and CodeGenerator so a single fixture
// covers the small ports.
type Store struct {
	mu sync.RWMutex

	challenges map[string]entities.Challenge
	tokens     map[string]entities.AuthToken

	fixedNow  *time.Time
	fixedCode string
}

func NewStore() *Store {
	return &Store{
		challenges: make(map[string]entities.Challenge),
		tokens:     make(map[string]entities.AuthToken),
	}
}

// SetNow pins the clock for deterministic expiry tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := now.UTC()
	s.fixedNow = &pinned
}

// SetNextCode pins the generated one-time code for tests.
func (s *Store) SetNextCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedCode = code
}

func (s *Store) PutChallenge(_ context.Context, challenge entities.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Identity] = challenge
	return nil
}

func (s *Store) GetChallenge(_ context.Context, identity string) (entities.Challenge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[identity]
	return challenge, ok, nil
}

func (s *Store) DeleteChallenge(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, identity)
	return nil
}

func (s *Store) DeleteExpiredChallenges(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for identity, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, identity)
			pruned++
		}
	}
	return pruned, nil
}

func (s *Store) PutToken(_ context.Context, token entities.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Token] = token
	return nil
}

func (s *Store) GetToken(_ context.Context, token string) (entities.AuthToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.tokens[token]
	return item, ok, nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for value, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, value)
			pruned++
		}
	}
	return pruned, nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fixedNow != nil {
		return *s.fixedNow
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) NewCode(_ context.Context) (string, error) {
	s.mu.RLock()
	fixed := s.fixedCode
	s.mu.RUnlock()
	if fixed != "" {
		return fixed, nil
	}
	value, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", value.Int64()), nil
}

var _ ports.ChallengeStore = (*Store)(nil)
var _ ports.TokenStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.CodeGenerator = (*Store)(nil)
