package commands

import (
	"context"
	"errors"
	"testing"

	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
)

func TestSetupElectionOpensAndSeedsTally(t *testing.T) {
	f := newFixture(t)
	background := context.Background()

	election, err := f.coordinator.SetupElection(background, SetupElectionCommand{
		ElectionID: "college-council-2026",
		Name:       "Student Council Election",
		Candidates: []entities.CandidateID{"Alice", "Bob"},
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if election.State != entities.ElectionOpen || election.OpenedAt == nil {
		t.Fatalf("expected an open election, got %+v", election)
	}

	snapshot, err := f.store.Snapshot(background)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot.Counts) != 2 || snapshot.Seq != 0 {
		t.Fatalf("expected zeroed counters per candidate, got %+v", snapshot)
	}
}

func TestSetupElectionValidation(t *testing.T) {
	f := newFixture(t)
	background := context.Background()

	cases := []SetupElectionCommand{
		{ElectionID: "", Candidates: []entities.CandidateID{"Alice", "Bob"}},
		{ElectionID: "e1", Candidates: []entities.CandidateID{"Alice"}},
		{ElectionID: "e1", Candidates: []entities.CandidateID{"Alice", ""}},
		{ElectionID: "e1", Candidates: []entities.CandidateID{"Alice", "Alice"}},
	}
	for _, cmd := range cases {
		if _, err := f.coordinator.SetupElection(background, cmd); !errors.Is(err, domainerrors.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", cmd, err)
		}
	}
}

func TestSetupElectionRefusedOnceOpen(t *testing.T) {
	f := newFixture(t)
	f.openElection(t)

	_, err := f.coordinator.SetupElection(context.Background(), SetupElectionCommand{
		ElectionID: "another",
		Candidates: []entities.CandidateID{"X", "Y"},
	})
	if !errors.Is(err, domainerrors.ErrElectionStateTransition) {
		t.Fatalf("expected ErrElectionStateTransition, got %v", err)
	}
}

func TestCloseElectionLifecycle(t *testing.T) {
	f := newFixture(t)
	background := context.Background()

	if _, err := f.coordinator.CloseElection(background); !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound before setup, got %v", err)
	}

	f.openElection(t)

	closed, err := f.coordinator.CloseElection(background)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.State != entities.ElectionClosed || closed.ClosedAt == nil {
		t.Fatalf("expected a closed election, got %+v", closed)
	}

	if _, err := f.coordinator.CloseElection(background); !errors.Is(err, domainerrors.ErrElectionStateTransition) {
		t.Fatalf("expected ErrElectionStateTransition on double close, got %v", err)
	}

	// Closed means no more admissions, ever.
	_, err = f.coordinator.CastVote(background, CastVoteCommand{
		Identifier:  "student@college.edu",
		CandidateID: "Alice",
		Token:       testToken,
	})
	if !errors.Is(err, domainerrors.ErrElectionNotOpen) {
		t.Fatalf("expected ErrElectionNotOpen after close, got %v", err)
	}
}
