package workers

import (
	"context"
	"log/slog"
	"time"

	application "electra/contexts/election-core/identity-gate/application"
	"electra/contexts/election-core/identity-gate/ports"
)

// ChallengeSweeper prunes expired challenges and auth tokens.
type ChallengeSweeper struct {
	Challenges ports.ChallengeStore
	Tokens     ports.TokenStore
	Clock      ports.Clock
	Logger     *slog.Logger
}

// RunOnce removes every challenge and token past expiry at the current tick.
func (s ChallengeSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	challenges, err := s.Challenges.DeleteExpiredChallenges(ctx, now)
	if err != nil {
		logger.Error("challenge sweep failed",
			"event", "identity_challenge_sweep_failed",
			"module", "election-core/identity-gate",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	tokens, err := s.Tokens.DeleteExpiredTokens(ctx, now)
	if err != nil {
		logger.Error("token sweep failed",
			"event", "identity_token_sweep_failed",
			"module", "election-core/identity-gate",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	if challenges > 0 || tokens > 0 {
		logger.Info("identity sweep completed",
			"event", "identity_sweep_completed",
			"module", "election-core/identity-gate",
			"layer", "worker",
			"pruned_challenges", challenges,
			"pruned_tokens", tokens,
		)
	}
	return nil
}
