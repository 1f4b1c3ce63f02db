package commands

import (
	"context"
	"encoding/json"
	"time"

	"electra/contexts/election-core/vote-admission/domain/entities"
	"electra/contexts/election-core/vote-admission/ports"
)

func (uc CoordinatorUseCase) appendVoteEvent(
	ctx context.Context,
	eventType string,
	vote entities.VoteRecord,
	occurredAt time.Time,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	return uc.appendEvent(ctx, eventType, vote.VoterHash, occurredAt, map[string]any{
		"vote_id":      vote.VoteID,
		"voter_hash":   vote.VoterHash,
		"candidate_id": string(vote.CandidateID),
		"signature":    vote.Signature,
		"submitted_at": vote.SubmittedAt.Format(time.RFC3339),
	})
}

func (uc CoordinatorUseCase) appendElectionEvent(
	ctx context.Context,
	eventType string,
	election entities.Election,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	candidates := make([]string, 0, len(election.Candidates))
	for _, candidate := range election.Candidates {
		candidates = append(candidates, string(candidate))
	}
	return uc.appendEvent(ctx, eventType, election.ElectionID, occurredAt, map[string]any{
		"election_id": election.ElectionID,
		"name":        election.Name,
		"state":       string(election.State),
		"candidates":  candidates,
	})
}

func (uc CoordinatorUseCase) appendEvent(
	ctx context.Context,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	// Events are partitioned by voter hash (or election id) so per-voter
	// ordering holds on scoped consumers.
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-admission",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "voter_hash",
		PartitionKey:     partitionKey,
		Data:             payload,
	})
}
