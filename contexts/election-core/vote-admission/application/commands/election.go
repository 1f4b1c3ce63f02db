package commands

import (
	"context"
	"strings"

	application "electra/contexts/election-core/vote-admission/application"
	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
)

// SetupElectionCommand fixes the ballot and opens the election.
type SetupElectionCommand struct {
	ElectionID string
	Name       string
	Candidates []entities.CandidateID
}

// SetupElection transitions uninitialized -> open: it validates and freezes
// the candidate set, resets the tally to zero, and records the open time.
// Any other starting state fails; there is no way back to setup.
func (uc CoordinatorUseCase) SetupElection(ctx context.Context, cmd SetupElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" || len(cmd.Candidates) < 2 {
		return entities.Election{}, domainerrors.ErrInvalidInput
	}
	seen := make(map[entities.CandidateID]struct{}, len(cmd.Candidates))
	for _, candidate := range cmd.Candidates {
		if strings.TrimSpace(string(candidate)) == "" {
			return entities.Election{}, domainerrors.ErrInvalidInput
		}
		if _, dup := seen[candidate]; dup {
			return entities.Election{}, domainerrors.ErrInvalidInput
		}
		seen[candidate] = struct{}{}
	}

	existing, found, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	if found && existing.State != entities.ElectionUninitialized {
		return entities.Election{}, domainerrors.ErrElectionStateTransition
	}

	if err := uc.Tally.Reset(ctx, cmd.Candidates); err != nil {
		return entities.Election{}, err
	}

	now := uc.now()
	election := entities.Election{
		ElectionID: strings.TrimSpace(cmd.ElectionID),
		Name:       strings.TrimSpace(cmd.Name),
		Candidates: cmd.Candidates,
		State:      entities.ElectionOpen,
		OpenedAt:   &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendElectionEvent(ctx, "election.opened", election, now); err != nil {
		return entities.Election{}, err
	}
	// Observers see the zeroed ballot as soon as the election opens, not
	// only after the first confirmed vote.
	if uc.Broadcaster != nil {
		if snapshot, err := uc.Tally.Snapshot(ctx); err == nil {
			uc.Broadcaster.Publish(snapshot)
		}
	}

	logger.Info("election opened",
		"event", "admission_election_opened",
		"module", "election-core/vote-admission",
		"layer", "application",
		"election_id", election.ElectionID,
		"candidates", len(election.Candidates),
	)
	return election, nil
}

// CloseElection transitions open -> closed. Terminal: votes after this point
// are rejected with ErrElectionNotOpen and the tally freezes.
func (uc CoordinatorUseCase) CloseElection(ctx context.Context) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, found, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	if !found {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	if election.State != entities.ElectionOpen {
		return entities.Election{}, domainerrors.ErrElectionStateTransition
	}

	now := uc.now()
	election.State = entities.ElectionClosed
	election.ClosedAt = &now
	election.UpdatedAt = now
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendElectionEvent(ctx, "election.closed", election, now); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election closed",
		"event", "admission_election_closed",
		"module", "election-core/vote-admission",
		"layer", "application",
		"election_id", election.ElectionID,
	)
	return election, nil
}
