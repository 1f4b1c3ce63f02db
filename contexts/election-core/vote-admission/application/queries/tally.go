package queries

import (
	"context"
	"sort"
	"strings"

	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"
)

// TallyUseCase serves the read side: snapshots, sorted results, voter status.
type TallyUseCase struct {
	Elections ports.ElectionStore
	Registry  ports.VoterRegistry
	Votes     ports.VoteRepository
	Tally     ports.TallyStore
}

func (uc TallyUseCase) Snapshot(ctx context.Context) (entities.TallySnapshot, error) {
	return uc.Tally.Snapshot(ctx)
}

// Results returns candidates ordered by count descending, name ascending on
// ties, for admin reporting.
func (uc TallyUseCase) Results(ctx context.Context) ([]entities.CandidateStanding, error) {
	snapshot, err := uc.Tally.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	standings := make([]entities.CandidateStanding, 0, len(snapshot.Counts))
	for candidate, count := range snapshot.Counts {
		standings = append(standings, entities.CandidateStanding{
			CandidateID: candidate,
			Count:       count,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Count == standings[j].Count {
			return standings[i].CandidateID < standings[j].CandidateID
		}
		return standings[i].Count > standings[j].Count
	})
	return standings, nil
}

// VoterStatus reports whether the identity holds the vote slot. The registry
// is a superset of confirmed votes (reservations in flight included), so it
// can never report false for a voter with a confirmed record.
func (uc TallyUseCase) VoterStatus(ctx context.Context, identifier string) (bool, error) {
	if strings.TrimSpace(identifier) == "" {
		return false, domainerrors.ErrInvalidInput
	}
	return uc.Registry.Contains(ctx, entities.VoterHash(identifier))
}

func (uc TallyUseCase) Election(ctx context.Context) (entities.Election, error) {
	election, found, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	if !found {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}
