package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"electra/contexts/election-core/identity-gate/adapters/memory"
	"electra/contexts/election-core/identity-gate/adapters/notify"
	"electra/contexts/election-core/identity-gate/domain/entities"
	domainerrors "electra/contexts/election-core/identity-gate/domain/errors"
)

func newGate(store *memory.Store, notifier *notify.RecordingNotifier) GateUseCase {
	return GateUseCase{
		Scheme:       entities.SchemeEmail,
		Challenges:   store,
		Tokens:       store,
		Notifier:     notifier,
		Clock:        store,
		IDGen:        store,
		Codes:        store,
		ChallengeTTL: 5 * time.Minute,
		TokenTTL:     30 * time.Minute,
	}
}

func TestRequestThenVerifyIssuesToken(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("482913")
	notifier := &notify.RecordingNotifier{}
	gate := newGate(store, notifier)

	requested, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "Student@College.EDU",
	})
	if err != nil {
		t.Fatalf("request challenge failed: %v", err)
	}
	if requested.ChallengeID == "" {
		t.Fatal("expected a challenge id")
	}

	messages := notifier.Messages()
	if len(messages) != 1 || !strings.Contains(messages[0], "482913") {
		t.Fatalf("expected delivered code in %v", messages)
	}

	verified, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "482913",
	})
	if err != nil {
		t.Fatalf("verify challenge failed: %v", err)
	}
	if verified.Token == "" {
		t.Fatal("expected an auth token")
	}

	token, err := gate.CheckToken(context.Background(), verified.Token)
	if err != nil {
		t.Fatalf("check token failed: %v", err)
	}
	if token.Identity != "student@college.edu" {
		t.Fatalf("unexpected token identity %q", token.Identity)
	}
}

func TestIssuedTokensAreRandomHex(t *testing.T) {
	store := memory.NewStore()
	notifier := &notify.RecordingNotifier{}
	gate := newGate(store, notifier)

	issue := func(identifier string) string {
		t.Helper()
		store.SetNextCode("101010")
		if _, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{Identifier: identifier}); err != nil {
			t.Fatalf("request challenge failed: %v", err)
		}
		verified, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
			Identifier: identifier,
			Code:       "101010",
		})
		if err != nil {
			t.Fatalf("verify challenge failed: %v", err)
		}
		return verified.Token
	}

	first := issue("alice@college.edu")
	second := issue("bob@college.edu")
	if first == second {
		t.Fatal("token values must be unique per issuance")
	}
	for _, token := range []string{first, second} {
		if len(token) != 32 {
			t.Fatalf("expected a 32-char token, got %q", token)
		}
		if _, err := hex.DecodeString(token); err != nil {
			t.Fatalf("token %q is not hex: %v", token, err)
		}
	}
}

func TestRequestChallengeRejectsBadIdentifier(t *testing.T) {
	gate := newGate(memory.NewStore(), &notify.RecordingNotifier{})

	_, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "someone@gmail.com",
	})
	if !errors.Is(err, domainerrors.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestRequestChallengeSurvivesDeliveryFailure(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("111222")
	notifier := &notify.RecordingNotifier{}
	notifier.FailWith(errors.New("provider down"))
	gate := newGate(store, notifier)

	_, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "student@college.edu",
	})
	if err != nil {
		t.Fatalf("delivery failure must not fail the request: %v", err)
	}

	// The challenge still exists and can be verified with the stored code.
	if _, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "111222",
	}); err != nil {
		t.Fatalf("verify after delivery failure failed: %v", err)
	}
}

func TestVerifyChallengeCodeMismatch(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("333444")
	gate := newGate(store, &notify.RecordingNotifier{})

	if _, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "student@college.edu",
	}); err != nil {
		t.Fatalf("request challenge failed: %v", err)
	}

	_, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "000000",
	})
	if !errors.Is(err, domainerrors.ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestVerifyChallengeIsSingleUse(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("555666")
	gate := newGate(store, &notify.RecordingNotifier{})

	if _, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "student@college.edu",
	}); err != nil {
		t.Fatalf("request challenge failed: %v", err)
	}
	if _, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "555666",
	}); err != nil {
		t.Fatalf("first verification failed: %v", err)
	}

	_, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "555666",
	})
	if !errors.Is(err, domainerrors.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on replay, got %v", err)
	}
}

func TestVerifyChallengeExpired(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("777888")
	store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gate := newGate(store, &notify.RecordingNotifier{})

	if _, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "student@college.edu",
	}); err != nil {
		t.Fatalf("request challenge failed: %v", err)
	}

	store.SetNow(time.Date(2026, 3, 1, 12, 6, 0, 0, time.UTC))
	_, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "777888",
	})
	if !errors.Is(err, domainerrors.ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
}

func TestCheckTokenExpiry(t *testing.T) {
	store := memory.NewStore()
	store.SetNextCode("999000")
	store.SetNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gate := newGate(store, &notify.RecordingNotifier{})

	if _, err := gate.RequestChallenge(context.Background(), RequestChallengeCommand{
		Identifier: "student@college.edu",
	}); err != nil {
		t.Fatalf("request challenge failed: %v", err)
	}
	verified, err := gate.VerifyChallenge(context.Background(), VerifyChallengeCommand{
		Identifier: "student@college.edu",
		Code:       "999000",
	})
	if err != nil {
		t.Fatalf("verify challenge failed: %v", err)
	}

	// Tokens are not consumed: a second check still succeeds.
	if _, err := gate.CheckToken(context.Background(), verified.Token); err != nil {
		t.Fatalf("first token check failed: %v", err)
	}
	if _, err := gate.CheckToken(context.Background(), verified.Token); err != nil {
		t.Fatalf("second token check failed: %v", err)
	}

	store.SetNow(time.Date(2026, 3, 1, 12, 31, 0, 0, time.UTC))
	if _, err := gate.CheckToken(context.Background(), verified.Token); !errors.Is(err, domainerrors.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if _, err := gate.CheckToken(context.Background(), "missing-token"); !errors.Is(err, domainerrors.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}
