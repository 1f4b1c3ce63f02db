package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "electra/contexts/election-core/identity-gate/application"
	"electra/contexts/election-core/identity-gate/domain/entities"
	domainerrors "electra/contexts/election-core/identity-gate/domain/errors"
	"electra/contexts/election-core/identity-gate/ports"
)

// RequestChallengeCommand asks for a one-time code for an identifier.
type RequestChallengeCommand struct {
	Identifier string
}

// RequestChallengeResult returns the challenge handle the caller can poll
// verification against. The code itself only travels through the Notifier.
type RequestChallengeResult struct {
	ChallengeID string
	ExpiresAt   time.Time
}

// VerifyChallengeCommand exchanges a pending challenge code for an auth token.
type VerifyChallengeCommand struct {
	Identifier string
	Code       string
}

// VerifyChallengeResult carries the freshly issued token.
type VerifyChallengeResult struct {
	Token     string
	ExpiresAt time.Time
}

// GateUseCase orchestrates identity proofing: format validation, single-use
// challenge lifecycle, and token issuance/expiry.
type GateUseCase struct {
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

// RequestChallenge validates the identifier, stores a fresh single-use code
// (replacing any pending one), and hands delivery to the Notifier. Delivery
// failure is logged, never returned: the challenge exists and the provider
// may retry delivery out of band.
func (uc GateUseCase) RequestChallenge(ctx context.Context, cmd RequestChallengeCommand) (RequestChallengeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	identity := entities.NormalizeIdentity(cmd.Identifier)
	if !entities.ValidFormat(uc.Scheme, identity) {
		logger.Warn("challenge request rejected",
			"event", "identity_challenge_invalid_identifier",
			"module", "election-core/identity-gate",
			"layer", "application",
			"scheme", string(uc.Scheme),
		)
		return RequestChallengeResult{}, domainerrors.ErrInvalidIdentifier
	}

	now := uc.now()
	challengeID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return RequestChallengeResult{}, err
	}
	code, err := uc.Codes.NewCode(ctx)
	if err != nil {
		return RequestChallengeResult{}, err
	}

	challenge := entities.Challenge{
		ChallengeID: challengeID,
		Identity:    identity,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(uc.resolveChallengeTTL()),
	}
	if err := uc.Challenges.PutChallenge(ctx, challenge); err != nil {
		return RequestChallengeResult{}, err
	}

	if err := uc.Notifier.Send(ctx, identity, fmt.Sprintf("Your election verification code is %s", code)); err != nil {
		logger.Error("challenge code delivery failed",
			"event", "identity_challenge_delivery_failed",
			"module", "election-core/identity-gate",
			"layer", "application",
			"challenge_id", challengeID,
			"error", err.Error(),
		)
	}

	logger.Info("challenge issued",
		"event", "identity_challenge_issued",
		"module", "election-core/identity-gate",
		"layer", "application",
		"challenge_id", challengeID,
		"expires_at", challenge.ExpiresAt,
	)
	return RequestChallengeResult{
		ChallengeID: challengeID,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// VerifyChallenge checks the pending code and, on match, invalidates the
// challenge and issues a fresh auth token with its own expiry.
func (uc GateUseCase) VerifyChallenge(ctx context.Context, cmd VerifyChallengeCommand) (VerifyChallengeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	identity := entities.NormalizeIdentity(cmd.Identifier)
	if !entities.ValidFormat(uc.Scheme, identity) {
		return VerifyChallengeResult{}, domainerrors.ErrInvalidIdentifier
	}

	now := uc.now()
	challenge, found, err := uc.Challenges.GetChallenge(ctx, identity)
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	if !found {
		return VerifyChallengeResult{}, domainerrors.ErrChallengeNotFound
	}
	if challenge.Expired(now) {
		// Expired rows are left to the sweeper; verification just refuses them.
		return VerifyChallengeResult{}, domainerrors.ErrChallengeExpired
	}
	if strings.TrimSpace(cmd.Code) != challenge.Code {
		logger.Warn("challenge code mismatch",
			"event", "identity_challenge_code_mismatch",
			"module", "election-core/identity-gate",
			"layer", "application",
			"challenge_id", challenge.ChallengeID,
		)
		return VerifyChallengeResult{}, domainerrors.ErrCodeMismatch
	}

	if err := uc.Challenges.DeleteChallenge(ctx, identity); err != nil {
		return VerifyChallengeResult{}, err
	}

	tokenValue, err := newTokenValue()
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	token := entities.AuthToken{
		Token:     tokenValue,
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(uc.resolveTokenTTL()),
	}
	if err := uc.Tokens.PutToken(ctx, token); err != nil {
		return VerifyChallengeResult{}, err
	}

	logger.Info("auth token issued",
		"event", "identity_token_issued",
		"module", "election-core/identity-gate",
		"layer", "application",
		"challenge_id", challenge.ChallengeID,
		"expires_at", token.ExpiresAt,
	)
	return VerifyChallengeResult{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// CheckToken reports whether the token exists and is unexpired. Tokens are
// read-only here: they authenticate a call, they are not vote receipts.
func (uc GateUseCase) CheckToken(ctx context.Context, tokenValue string) (entities.AuthToken, error) {
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return entities.AuthToken{}, domainerrors.ErrTokenNotFound
	}
	token, found, err := uc.Tokens.GetToken(ctx, tokenValue)
	if err != nil {
		return entities.AuthToken{}, err
	}
	if !found {
		return entities.AuthToken{}, domainerrors.ErrTokenNotFound
	}
	if token.Expired(uc.now()) {
		return entities.AuthToken{}, domainerrors.ErrTokenExpired
	}
	return token, nil
}

// ValidateFormat is the pure syntactic identifier check. Vote admission runs
// it before reserving a voter slot, so malformed identifiers never reach the
// registry.
func (uc GateUseCase) ValidateFormat(identifier string) bool {
	return entities.ValidFormat(uc.Scheme, entities.NormalizeIdentity(identifier))
}

// newTokenValue mints an opaque 128-bit bearer token as lowercase hex.
func newTokenValue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token value: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (uc GateUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc GateUseCase) resolveChallengeTTL() time.Duration {
	if uc.ChallengeTTL <= 0 {
		return 5 * time.Minute
	}
	return uc.ChallengeTTL
}

func (uc GateUseCase) resolveTokenTTL() time.Duration {
	if uc.TokenTTL <= 0 {
		return 30 * time.Minute
	}
	return uc.TokenTTL
}
