package ports

import (
	"context"
	"time"

	"electra/contexts/election-core/vote-admission/domain/entities"
	"electra/internal/shared/events"
)

// VoterRegistry is the single source of truth for the at-most-once invariant.
type VoterRegistry interface {
	// Reserve atomically tests-and-sets membership for the voter hash.
	// False means the hash is already reserved or confirmed. For any hash,
	// at most one caller ever observes true for the lifetime of the election.
	Reserve(ctx context.Context, voterHash string) (bool, error)
	// Release undoes a reservation after a terminal submission failure.
	// Never called once the ledger has confirmed.
	Release(ctx context.Context, voterHash string) error
	Contains(ctx context.Context, voterHash string) (bool, error)
}

// VoteRepository persists confirmed, append-only vote records.
type VoteRepository interface {
	SaveVote(ctx context.Context, vote entities.VoteRecord) error
	GetVoteByVoter(ctx context.Context, voterHash string) (entities.VoteRecord, bool, error)
	ListVotes(ctx context.Context) ([]entities.VoteRecord, error)
}

// TallyStore mirrors confirmed ledger writes into per-candidate counters.
type TallyStore interface {
	// Increment must only run after a confirmed ledger receipt, once per vote.
	Increment(ctx context.Context, candidateID entities.CandidateID) error
	// Snapshot returns a consistent cross-candidate copy; the critical
	// section must stay short so writers are not blocked for long.
	Snapshot(ctx context.Context) (entities.TallySnapshot, error)
	// Reset is only valid before the election opens.
	Reset(ctx context.Context, candidates []entities.CandidateID) error
}

type ElectionStore interface {
	GetElection(ctx context.Context) (entities.Election, bool, error)
	SaveElection(ctx context.Context, election entities.Election) error
}

// VoteIntent is the payload handed to the external ledger.
type VoteIntent struct {
	CandidateID entities.CandidateID
	VoterHash   string
	Timestamp   time.Time
}

type LedgerReceipt struct {
	Signature   string
	Slot        uint64
	ConfirmedAt time.Time
}

// Ledger adapts the external append-only service. Submit blocks until the
// ledger acknowledges inclusion or reports failure; implementations retry
// transient faults internally within their bounded budget and classify the
// outcome as ErrLedgerUnavailable (transient budget exhausted) or
// ErrLedgerRejected (terminal).
type Ledger interface {
	Submit(ctx context.Context, intent VoteIntent) (LedgerReceipt, error)
}

// TokenChecker validates proof-of-authentication tokens issued by the
// identity gate and returns the normalized identity the token was issued
// for, so the coordinator can refuse a token presented with someone else's
// identifier. Checking never consumes the token.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (string, error)
}

type TokenCheckerFunc func(ctx context.Context, token string) (string, error)

func (f TokenCheckerFunc) CheckToken(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// IdentifierValidator reports whether an identifier is well-formed under the
// active identity scheme. Purely syntactic, no store access.
type IdentifierValidator interface {
	ValidIdentifier(identifier string) bool
}

type IdentifierValidatorFunc func(identifier string) bool

func (f IdentifierValidatorFunc) ValidIdentifier(identifier string) bool {
	return f(identifier)
}

// TallySubscription is one observer's ordered snapshot feed.
type TallySubscription interface {
	Updates() <-chan entities.TallySnapshot
	// Close unsubscribes; idempotent.
	Close()
}

// TallyBroadcaster fans tally snapshots out to observers. A new subscriber
// receives the current snapshot before any subsequent delta; a slow observer
// must never block the publisher or other observers.
type TallyBroadcaster interface {
	Subscribe() TallySubscription
	Publish(snapshot entities.TallySnapshot)
}

type EventEnvelope = events.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
