package ports

import (
	"context"
	"time"

	"electra/contexts/election-core/identity-gate/domain/entities"
)

// ChallengeStore persists pending one-time-code challenges keyed by identity.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, challenge entities.Challenge) error
	GetChallenge(ctx context.Context, identity string) (entities.Challenge, bool, error)
	DeleteChallenge(ctx context.Context, identity string) error
	// DeleteExpiredChallenges prunes rows past expiry; returns pruned count.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int, error)
}

// TokenStore persists issued auth tokens keyed by token value.
type TokenStore interface {
	PutToken(ctx context.Context, token entities.AuthToken) error
	GetToken(ctx context.Context, token string) (entities.AuthToken, bool, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)
}

// Notifier delivers the one-time code to the voter out of band.
// Delivery failure must not fail challenge creation.
type Notifier interface {
	Send(ctx context.Context, identity string, message string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// CodeGenerator produces the short one-time code delivered to the voter.
type CodeGenerator interface {
	NewCode(ctx context.Context) (string, error)
}
