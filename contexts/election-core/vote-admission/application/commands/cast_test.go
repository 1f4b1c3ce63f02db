package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"electra/contexts/election-core/vote-admission/adapters/broadcast"
	"electra/contexts/election-core/vote-admission/adapters/memory"
	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"
)

const (
	testToken    = "valid-token"
	testIdentity = "student@college.edu"
)

func isCollegeEmail(identifier string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(identifier)), "@college.edu")
}

type fixture struct {
	store       *memory.Store
	ledger      *memory.FakeLedger
	broadcaster *broadcast.Broadcaster
	coordinator CoordinatorUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	ledger := memory.NewFakeLedger()
	broadcaster := broadcast.New(8, nil)
	coordinator := CoordinatorUseCase{
		Elections:   store,
		Registry:    store,
		Votes:       store,
		Tally:       store,
		Ledger:      ledger,
		Broadcaster: broadcaster,
		Tokens: ports.TokenCheckerFunc(func(_ context.Context, token string) (string, error) {
			if token == testToken {
				return testIdentity, nil
			}
			return "", domainerrors.ErrUnauthenticated
		}),
		Identifiers: ports.IdentifierValidatorFunc(isCollegeEmail),
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
		SubmitTimeout: 5 * time.Second,
	}
	return &fixture{
		store:       store,
		ledger:      ledger,
		broadcaster: broadcaster,
		coordinator: coordinator,
	}
}

func (f *fixture) openElection(t *testing.T) {
	t.Helper()
	_, err := f.coordinator.SetupElection(context.Background(), SetupElectionCommand{
		ElectionID: "college-council-2026",
		Name:       "Student Council Election",
		Candidates: []entities.CandidateID{"Alice", "Bob", "Charlie"},
	})
	if err != nil {
		t.Fatalf("setup election failed: %v", err)
	}
}

func TestCastVoteHappyPath(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	result, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if result.Vote.VoteID == "" || result.Receipt.Signature == "" {
		t.Fatalf("expected vote id and ledger signature, got %+v", result)
	}

	voted, err := f.store.Contains(background, entities.VoterHash("student@college.edu"))
	if err != nil || !voted {
		t.Fatalf("registry should contain the voter: voted=%v err=%v", voted, err)
	}

	snapshot, err := f.store.Snapshot(background)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Counts["Alice"] != 1 || snapshot.Seq != 1 {
		t.Fatalf("unexpected tally %+v", snapshot)
	}

	vote, found, err := f.store.GetVoteByVoter(background, entities.VoterHash("student@college.edu"))
	if err != nil || !found {
		t.Fatalf("vote record missing: found=%v err=%v", found, err)
	}
	if vote.CandidateID != "Alice" || vote.Signature != result.Receipt.Signature {
		t.Fatalf("unexpected vote record %+v", vote)
	}
}

func TestCastVoteAppendsConfirmedEvent(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	if _, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Bob",
		Token:       testToken,
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	pending, err := f.store.ListPendingOutbox(background, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	types := make(map[string]int, len(pending))
	for _, message := range pending {
		types[message.EventType]++
	}
	if types["election.opened"] != 1 || types["vote.confirmed"] != 1 {
		t.Fatalf("unexpected outbox contents %v", types)
	}
}

func TestCastVotePublishesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)

	// Subscribing between setup and the first vote still yields the zeroed
	// ballot immediately, then the confirmed-vote snapshot.
	subscription := f.broadcaster.Subscribe()
	defer subscription.Close()

	select {
	case snapshot := <-subscription.Updates():
		if snapshot.Seq != 0 || snapshot.Counts["Alice"] != 0 || len(snapshot.Counts) != 3 {
			t.Fatalf("unexpected initial snapshot %+v", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the zero-vote snapshot before any confirmation")
	}

	if _, err := f.coordinator.CastVote(context.Background(), CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	select {
	case snapshot := <-subscription.Updates():
		if snapshot.Seq != 1 || snapshot.Counts["Alice"] != 1 {
			t.Fatalf("unexpected published snapshot %+v", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a published snapshot")
	}
}

func TestCastVoteDuplicateRejected(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	if _, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	// Same identity in a different textual form.
	_, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "  STUDENT@college.EDU ",
		CandidateID: "Bob",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	snapshot, _ := f.store.Snapshot(background)
	if snapshot.Seq != 1 {
		t.Fatalf("duplicate must not change the tally, got %+v", snapshot)
	}
}

func TestCastVoteConcurrentSameIdentity(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	outcomes := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.CastVote(background, CastVoteCommand{
				Identifier:  "student@college.edu",
				CandidateID: "Alice",
				Token:       testToken,
			})
			outcomes <- err
		}()
	}
	wg.Wait()
	close(outcomes)

	confirmed, duplicates := 0, 0
	for err := range outcomes {
		switch {
		case err == nil:
			confirmed++
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
			duplicates++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	if confirmed != 1 || duplicates != attempts-1 {
		t.Fatalf("expected exactly one confirmation, got %d confirmed %d duplicates", confirmed, duplicates)
	}

	snapshot, _ := f.store.Snapshot(background)
	if snapshot.Seq != 1 || snapshot.Counts["Alice"] != 1 {
		t.Fatalf("unexpected tally after race %+v", snapshot)
	}
}

func TestCastVoteLedgerOutageRollsBackReservation(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	f.ledger.FailUnavailable(1)
	_, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}

	voted, _ := f.store.Contains(background, entities.VoterHash("student@college.edu"))
	if voted {
		t.Fatal("failed submission must release the reservation")
	}

	// The same voter can retry once the outage clears.
	if _, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	}); err != nil {
		t.Fatalf("retry after outage failed: %v", err)
	}
}

func TestCastVoteLedgerRejection(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)

	f.ledger.RejectAll(true)
	_, err := f.coordinator.CastVote(context.Background(), CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrLedgerRejected) {
		t.Fatalf("expected ErrLedgerRejected, got %v", err)
	}

	voted, _ := f.store.Contains(context.Background(), entities.VoterHash("student@college.edu"))
	if voted {
		t.Fatal("rejected submission must release the reservation")
	}
}

func TestCastVoteGuards(t *testing.T) {
	f := newFixture(t)
	background := context.Background()

	// No election configured yet.
	_, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrElectionNotOpen) {
		t.Fatalf("expected ErrElectionNotOpen before setup, got %v", err)
	}

	f.openElection(t)

	_, err = f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, err = f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Mallory",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrInvalidCandidate) {
		t.Fatalf("expected ErrInvalidCandidate, got %v", err)
	}

	_, err = f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       "forged",
	})
	if !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	voted, _ := f.store.Contains(background, entities.VoterHash("student@college.edu"))
	if voted {
		t.Fatal("guard failures must not reserve the voter slot")
	}
}

func TestCastVoteRejectsMalformedIdentifier(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	for _, identifier := range []string{"not-an-email", "x", "student@gmail.com", "!!\x01??"} {
		_, err := f.coordinator.CastVote(background, CastVoteCommand{
			Identifier:  identifier,
			CandidateID: "Alice",
			Token:       testToken,
		})
		if !errors.Is(err, domainerrors.ErrInvalidInput) {
			t.Fatalf("identifier %q: expected ErrInvalidInput, got %v", identifier, err)
		}
		voted, _ := f.store.Contains(background, entities.VoterHash(identifier))
		if voted {
			t.Fatalf("identifier %q must not be reserved", identifier)
		}
	}

	snapshot, _ := f.store.Snapshot(background)
	if snapshot.Seq != 0 {
		t.Fatalf("malformed identifiers must not be tallied, got %+v", snapshot)
	}
}

func TestCastVoteRejectsTokenBoundToAnotherIdentity(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)
	background := context.Background()

	// Well-formed identifier, valid token, but the token belongs to someone
	// else.
	_, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "other@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	voted, _ := f.store.Contains(background, entities.VoterHash("other@college.edu"))
	if voted {
		t.Fatal("mismatched token must not reserve the voter slot")
	}

	// The token still works for the identity it was issued to.
	if _, err := f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  testIdentity,
		CandidateID: "Alice",
		Token:       testToken,
	}); err != nil {
		t.Fatalf("cast with the bound identity failed: %v", err)
	}
}

func TestCastVoteCallerTimeoutLeavesSubmissionPending(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)

	f.ledger.SetLatency(150 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.coordinator.CastVote(ctx, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrSubmissionPending) {
		t.Fatalf("expected ErrSubmissionPending, got %v", err)
	}

	// The detached submission keeps running and confirms the vote.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot, snapErr := f.store.Snapshot(context.Background())
		if snapErr != nil {
			t.Fatalf("snapshot failed: %v", snapErr)
		}
		if snapshot.Seq == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pending submission never confirmed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	voted, _ := f.store.Contains(context.Background(), entities.VoterHash("student@college.edu"))
	if !voted {
		t.Fatal("confirmed voter must stay in the registry")
	}

	// A duplicate attempt after the background confirmation is still refused.
	_, err = f.coordinator.CastVote(context.Background(), CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Bob",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted after async confirm, got %v", err)
	}
}
