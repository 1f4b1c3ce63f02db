package voteadmission

import (
	"log/slog"
	"time"

	"electra/contexts/election-core/vote-admission/adapters/broadcast"
	httpadapter "electra/contexts/election-core/vote-admission/adapters/http"
	"electra/contexts/election-core/vote-admission/adapters/memory"
	"electra/contexts/election-core/vote-admission/application/commands"
	"electra/contexts/election-core/vote-admission/application/queries"
	"electra/contexts/election-core/vote-admission/application/workers"
	"electra/contexts/election-core/vote-admission/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	Broadcaster ports.TallyBroadcaster
	Relay       workers.OutboxRelay
	Store       *memory.Store
	Ledger      *memory.FakeLedger
}

type Dependencies struct {
	Elections     ports.ElectionStore
	Registry      ports.VoterRegistry
	Votes         ports.VoteRepository
	Tally         ports.TallyStore
	Ledger        ports.Ledger
	Broadcaster   ports.TallyBroadcaster
	Tokens        ports.TokenChecker
	Identifiers   ports.IdentifierValidator
	Outbox        ports.OutboxWriter
	OutboxRepo    ports.OutboxRepository
	Publisher     ports.EventPublisher
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	broadcaster := deps.Broadcaster
	if broadcaster == nil {
		fanout := broadcast.New(0, deps.Logger)
		fanout.Source = deps.Tally
		broadcaster = fanout
	}
	coordinator := commands.CoordinatorUseCase{
		Elections:     deps.Elections,
		Registry:      deps.Registry,
		Votes:         deps.Votes,
		Tally:         deps.Tally,
		Ledger:        deps.Ledger,
		Broadcaster:   broadcaster,
		Tokens:        deps.Tokens,
		Identifiers:   deps.Identifiers,
		Outbox:        deps.Outbox,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		SubmitTimeout: deps.SubmitTimeout,
		Logger:        deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Elections: deps.Elections,
		Registry:  deps.Registry,
		Votes:     deps.Votes,
		Tally:     deps.Tally,
	}
	return Module{
		Handler: httpadapter.Handler{
			Coordinator: coordinator,
			Tallies:     tallyUseCase,
			Logger:      deps.Logger,
		},
		Broadcaster: broadcaster,
		Relay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-memory store and fake
// ledger for tests and local runs.
func NewInMemoryModule(tokens ports.TokenChecker, identifiers ports.IdentifierValidator, logger *slog.Logger) Module {
	store := memory.NewStore()
	ledger := memory.NewFakeLedger()
	module := NewModule(Dependencies{
		Elections:     store,
		Registry:      store,
		Votes:         store,
		Tally:         store,
		Ledger:        ledger,
		Tokens:        tokens,
		Identifiers:   identifiers,
		Outbox:        store,
		OutboxRepo:    store,
		Clock:         store,
		IDGen:         store,
		SubmitTimeout: 30 * time.Second,
		Logger:        logger,
	})
	module.Store = store
	module.Ledger = ledger
	return module
}
