package identitygate

import (
	"log/slog"
	"time"

	httpadapter "electra/contexts/election-core/identity-gate/adapters/http"
	"electra/contexts/election-core/identity-gate/adapters/memory"
	"electra/contexts/election-core/identity-gate/adapters/notify"
	"electra/contexts/election-core/identity-gate/application/commands"
	"electra/contexts/election-core/identity-gate/application/workers"
	"electra/contexts/election-core/identity-gate/domain/entities"
	"electra/contexts/election-core/identity-gate/ports"
)

type Module struct {
	Gate    commands.GateUseCase
	Handler httpadapter.Handler
	Sweeper workers.ChallengeSweeper
	Store   *memory.Store
}

type Dependencies struct {
	Scheme       entities.IdentityScheme
	Challenges   ports.ChallengeStore
	Tokens       ports.TokenStore
	Notifier     ports.Notifier
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Codes        ports.CodeGenerator
	ChallengeTTL time.Duration
	TokenTTL     time.Duration
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	gate := commands.GateUseCase{
		Scheme:       deps.Scheme,
		Challenges:   deps.Challenges,
		Tokens:       deps.Tokens,
		Notifier:     deps.Notifier,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		Codes:        deps.Codes,
		ChallengeTTL: deps.ChallengeTTL,
		TokenTTL:     deps.TokenTTL,
		Logger:       deps.Logger,
	}
	return Module{
		Gate: gate,
		Handler: httpadapter.Handler{
			Gate:   gate,
			Logger: deps.Logger,
		},
		Sweeper: workers.ChallengeSweeper{
			Challenges: deps.Challenges,
			Tokens:     deps.Tokens,
			Clock:      deps.Clock,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(scheme entities.IdentityScheme, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Scheme:       scheme,
		Challenges:   store,
		Tokens:       store,
		Notifier:     notify.LogNotifier{Logger: logger},
		Clock:        store,
		IDGen:        store,
		Codes:        store,
		ChallengeTTL: 5 * time.Minute,
		TokenTTL:     30 * time.Minute,
		Logger:       logger,
	})
	module.Store = store
	return module
}
