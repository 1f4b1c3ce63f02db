package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"

	"github.com/google/uuid"
)

// FakeLedger confirms every intent unless failures are injected. It stands in
// for the external append-only service in tests and ledger-less dev wiring,
// and keeps its own voter-hash dedupe as the defense-in-depth layer the real
// ledger provides.
type FakeLedger struct {
	mu sync.Mutex

	slot          uint64
	seen          map[string]struct{}
	unavailable   int
	rejectAll     bool
	submitLatency time.Duration
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		seen: make(map[string]struct{}),
	}
}

// FailUnavailable makes the next n submissions fail as transient outages.
func (l *FakeLedger) FailUnavailable(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unavailable = n
}

// RejectAll makes every submission fail terminally.
func (l *FakeLedger) RejectAll(reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectAll = reject
}

// SetLatency delays each submission, for caller-timeout tests.
func (l *FakeLedger) SetLatency(latency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitLatency = latency
}

func (l *FakeLedger) Submit(ctx context.Context, intent ports.VoteIntent) (ports.LedgerReceipt, error) {
	l.mu.Lock()
	latency := l.submitLatency
	l.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return ports.LedgerReceipt{}, fmt.Errorf("%w: %v", domainerrors.ErrLedgerUnavailable, ctx.Err())
		case <-time.After(latency):
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unavailable > 0 {
		l.unavailable--
		return ports.LedgerReceipt{}, domainerrors.ErrLedgerUnavailable
	}
	if l.rejectAll {
		return ports.LedgerReceipt{}, domainerrors.ErrLedgerRejected
	}
	if _, dup := l.seen[intent.VoterHash]; dup {
		return ports.LedgerReceipt{}, domainerrors.ErrLedgerRejected
	}
	l.seen[intent.VoterHash] = struct{}{}
	l.slot++
	return ports.LedgerReceipt{
		Signature:   uuid.NewString(),
		Slot:        l.slot,
		ConfirmedAt: time.Now().UTC(),
	}, nil
}

var _ ports.Ledger = (*FakeLedger)(nil)
