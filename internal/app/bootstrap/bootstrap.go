// Package bootstrap is the composition root for the api and worker processes.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	identitygate "electra/contexts/election-core/identity-gate"
	gatememory "electra/contexts/election-core/identity-gate/adapters/memory"
	"electra/contexts/election-core/identity-gate/adapters/notify"
	gateworkers "electra/contexts/election-core/identity-gate/application/workers"
	gateentities "electra/contexts/election-core/identity-gate/domain/entities"
	voteadmission "electra/contexts/election-core/vote-admission"
	ledgeradapter "electra/contexts/election-core/vote-admission/adapters/ledger"
	admissionmemory "electra/contexts/election-core/vote-admission/adapters/memory"
	postgresadapter "electra/contexts/election-core/vote-admission/adapters/postgres"
	admissioncommands "electra/contexts/election-core/vote-admission/application/commands"
	admissionworkers "electra/contexts/election-core/vote-admission/application/workers"
	admissionentities "electra/contexts/election-core/vote-admission/domain/entities"
	admissionports "electra/contexts/election-core/vote-admission/ports"
	"electra/internal/platform/config"
	"electra/internal/platform/db"
	"electra/internal/platform/httpserver"
	"electra/internal/platform/messaging"
)

const ledgerModeMemory = "memory"

type APIApp struct {
	server        *httpserver.Server
	postgres      *db.Postgres
	sweeper       gateworkers.ChallengeSweeper
	sweepInterval time.Duration
	runSweeper    bool
	logger        *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  admissionworkers.OutboxRelay
	pollInterval time.Duration
	runRelay     bool
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	// Challenges and tokens are short-lived by construction, so the identity
	// gate always runs on the in-memory store.
	gateStore := gatememory.NewStore()
	gateModule := identitygate.NewModule(identitygate.Dependencies{
		Scheme:       identityScheme(cfg.IdentityScheme),
		Challenges:   gateStore,
		Tokens:       gateStore,
		Notifier:     notify.LogNotifier{Logger: logger},
		Clock:        gateStore,
		IDGen:        gateStore,
		Codes:        gateStore,
		ChallengeTTL: cfg.ChallengeTTL,
		TokenTTL:     cfg.AuthTokenTTL,
		Logger:       logger,
	})

	tokens := admissionports.TokenCheckerFunc(func(ctx context.Context, token string) (string, error) {
		authToken, err := gateModule.Gate.CheckToken(ctx, token)
		if err != nil {
			return "", err
		}
		return authToken.Identity, nil
	})

	deps := voteadmission.Dependencies{
		Ledger:        buildLedger(cfg, logger),
		Tokens:        tokens,
		Identifiers:   admissionports.IdentifierValidatorFunc(gateModule.Gate.ValidateFormat),
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        logger,
	}

	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		deps.Elections = repo
		deps.Registry = repo
		deps.Votes = repo
		deps.Tally = repo
		deps.Outbox = repo
		deps.OutboxRepo = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGen = postgresadapter.UUIDGenerator{}
	} else {
		store := admissionmemory.NewStore()
		deps.Elections = store
		deps.Registry = store
		deps.Votes = store
		deps.Tally = store
		deps.Outbox = store
		deps.OutboxRepo = store
		deps.Clock = store
		deps.IDGen = store
	}
	admissionModule := voteadmission.NewModule(deps)

	if cfg.AutoSetupElection {
		if err := seedElection(context.Background(), cfg, admissionModule, logger); err != nil {
			return nil, err
		}
	}

	server := httpserver.New(gateModule, admissionModule, cfg.AdminKey, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:        server,
		postgres:      pg,
		sweeper:       gateModule.Sweeper,
		sweepInterval: time.Minute,
		runSweeper:    cfg.EnableChallengeSweeper,
		logger:        logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: admissionworkers.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: cfg.OutboxPollInterval,
		runRelay:     cfg.EnableOutboxRelay,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	if a.runSweeper {
		go a.runChallengeSweeper(ctx)
	}
	return a.server.Start()
}

func (a *APIApp) runChallengeSweeper(ctx context.Context) {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sweeper.RunOnce(ctx); err != nil && a.logger != nil {
				a.logger.Error("challenge sweep failed",
					"event", "bootstrap_challenge_sweep_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
	}
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if !w.runRelay {
		w.logger.Warn("outbox relay disabled, worker idle",
			"event", "bootstrap_worker_idle",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// seedElection opens the env-configured ballot once, on first boot.
// An election in any state short-circuits the seed so restarts are safe.
func seedElection(ctx context.Context, cfg config.Config, module voteadmission.Module, logger *slog.Logger) error {
	_, found, err := module.Handler.Coordinator.Elections.GetElection(ctx)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	candidates := make([]admissionentities.CandidateID, 0, len(cfg.ElectionCandidates))
	for _, candidate := range cfg.ElectionCandidates {
		candidates = append(candidates, admissionentities.CandidateID(candidate))
	}
	election, err := module.Handler.Coordinator.SetupElection(ctx, admissioncommands.SetupElectionCommand{
		ElectionID: cfg.ElectionID,
		Name:       cfg.ElectionName,
		Candidates: candidates,
	})
	if err != nil {
		return err
	}

	logger.Info("election seeded from config",
		"event", "bootstrap_election_seeded",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"election_id", election.ElectionID,
		"candidates", len(election.Candidates),
	)
	return nil
}

func buildLedger(cfg config.Config, logger *slog.Logger) admissionports.Ledger {
	if strings.TrimSpace(cfg.LedgerRPCURL) == ledgerModeMemory {
		return admissionmemory.NewFakeLedger()
	}
	client := ledgeradapter.NewClient(cfg.LedgerRPCURL, logger)
	client.MaxAttempts = cfg.LedgerMaxAttempts
	client.BackoffBase = cfg.LedgerBackoffBase
	return client
}

func identityScheme(raw string) gateentities.IdentityScheme {
	if strings.EqualFold(strings.TrimSpace(raw), string(gateentities.SchemePhone)) {
		return gateentities.SchemePhone
	}
	return gateentities.SchemeEmail
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
