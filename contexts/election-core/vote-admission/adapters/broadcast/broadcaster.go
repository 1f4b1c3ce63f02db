package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"electra/contexts/election-core/vote-admission/domain/entities"
	"electra/contexts/election-core/vote-admission/ports"

	"github.com/google/uuid"
)

const defaultBufferSize = 16

// SnapshotSource supplies the current tally when nothing has been published
// yet: a subscriber arriving before the first confirmed vote, or the first
// subscriber after a process restart. ports.TallyStore satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (entities.TallySnapshot, error)
}

// Broadcaster fans tally snapshots out to observers over bounded per-observer
// queues. Publish never blocks: when an observer's queue is full the oldest
// queued snapshot is dropped, which keeps delivery ordered and monotonic
// because the newer snapshot supersedes everything dropped.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[string]*subscription
	last    entities.TallySnapshot
	hasLast bool
	buffer  int
	logger  *slog.Logger

	// Source backfills the first delivery when no snapshot has been
	// published in this process yet. Set once at wiring time.
	Source SnapshotSource
}

func New(bufferSize int, logger *slog.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Broadcaster{
		subs:   make(map[string]*subscription),
		buffer: bufferSize,
		logger: logger,
	}
}

type subscription struct {
	id     string
	ch     chan entities.TallySnapshot
	owner  *Broadcaster
	closed sync.Once
}

func (s *subscription) Updates() <-chan entities.TallySnapshot {
	return s.ch
}

func (s *subscription) Close() {
	s.closed.Do(func() {
		s.owner.mu.Lock()
		defer s.owner.mu.Unlock()
		delete(s.owner.subs, s.id)
		close(s.ch)
	})
}

// Subscribe registers an observer and queues the current snapshot first, so
// the observer's view has no gap between subscribing and the next delta.
// Before the first publish the seed comes from Source, so a zero-vote open
// election (or a fresh process over a durable store) still delivers the
// current tally immediately.
func (b *Broadcaster) Subscribe() ports.TallySubscription {
	seed, hasSeed := b.lastSnapshot()
	if !hasSeed && b.Source != nil {
		snapshot, err := b.Source.Snapshot(context.Background())
		if err == nil {
			seed, hasSeed = snapshot, true
		} else if b.logger != nil {
			b.logger.Warn("snapshot backfill for new observer failed",
				"event", "broadcast_seed_failed",
				"module", "election-core/vote-admission",
				"layer", "adapter",
				"error", err.Error(),
			)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:    uuid.NewString(),
		ch:    make(chan entities.TallySnapshot, b.buffer),
		owner: b,
	}
	b.subs[sub.id] = sub
	switch {
	case b.hasLast:
		sub.ch <- b.last.Clone()
	case hasSeed:
		b.last = seed.Clone()
		b.hasLast = true
		sub.ch <- b.last.Clone()
	}
	return sub
}

func (b *Broadcaster) lastSnapshot() (entities.TallySnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasLast {
		return entities.TallySnapshot{}, false
	}
	return b.last.Clone(), true
}

// Publish delivers the snapshot to every observer. Stale snapshots (sequence
// at or behind the last published one) are ignored so a racing publisher can
// never roll an observer's view backwards.
func (b *Broadcaster) Publish(snapshot entities.TallySnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasLast && snapshot.Seq <= b.last.Seq {
		return
	}
	b.last = snapshot.Clone()
	b.hasLast = true

	for _, sub := range b.subs {
		b.push(sub, b.last.Clone())
	}
}

func (b *Broadcaster) push(sub *subscription, snapshot entities.TallySnapshot) {
	for {
		select {
		case sub.ch <- snapshot:
			return
		default:
		}
		// Full queue: drop the oldest entry and retry with the newer one.
		select {
		case dropped := <-sub.ch:
			if b.logger != nil {
				b.logger.Warn("dropping tally snapshot for slow observer",
					"event", "broadcast_snapshot_dropped",
					"module", "election-core/vote-admission",
					"layer", "adapter",
					"observer_id", sub.id,
					"dropped_seq", dropped.Seq,
				)
			}
		default:
		}
	}
}

// Observers reports the current subscriber count, for health reporting.
func (b *Broadcaster) Observers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

var _ ports.TallyBroadcaster = (*Broadcaster)(nil)
