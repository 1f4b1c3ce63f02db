package httpadapter

import (
	"context"
	"log/slog"

	"electra/contexts/election-core/vote-admission/application/commands"
	"electra/contexts/election-core/vote-admission/application/queries"
	"electra/contexts/election-core/vote-admission/domain/entities"
	httptransport "electra/contexts/election-core/vote-admission/transport/http"
)

type Handler struct {
	Coordinator commands.CoordinatorUseCase
	Tallies     queries.TallyUseCase
	Logger      *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	token string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Coordinator.CastVote(ctx, commands.CastVoteCommand{
		Identifier:  req.Identifier,
		CandidateID: entities.CandidateID(req.CandidateID),
		Token:       token,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		VoteID:      result.Vote.VoteID,
		CandidateID: string(result.Vote.CandidateID),
		Signature:   result.Receipt.Signature,
		Slot:        result.Receipt.Slot,
		SubmittedAt: result.Vote.SubmittedAt,
	}, nil
}

func (h Handler) VoterStatusHandler(ctx context.Context, identifier string) (httptransport.VoterStatusResponse, error) {
	voted, err := h.Tallies.VoterStatus(ctx, identifier)
	if err != nil {
		return httptransport.VoterStatusResponse{}, err
	}
	return httptransport.VoterStatusResponse{Voted: voted}, nil
}

func (h Handler) TallyHandler(ctx context.Context) (httptransport.TallyResponse, error) {
	snapshot, err := h.Tallies.Snapshot(ctx)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return TallyResponseFromSnapshot(snapshot), nil
}

func (h Handler) ResultsHandler(ctx context.Context) (httptransport.ResultsResponse, error) {
	standings, err := h.Tallies.Results(ctx)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	items := make([]httptransport.CandidateResult, 0, len(standings))
	for i, standing := range standings {
		items = append(items, httptransport.CandidateResult{
			CandidateID: string(standing.CandidateID),
			Count:       standing.Count,
			Rank:        i + 1,
		})
	}
	return httptransport.ResultsResponse{Items: items}, nil
}

func (h Handler) ElectionHandler(ctx context.Context) (httptransport.ElectionResponse, error) {
	election, err := h.Tallies.Election(ctx)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election), nil
}

func (h Handler) SetupElectionHandler(
	ctx context.Context,
	req httptransport.SetupElectionRequest,
) (httptransport.ElectionResponse, error) {
	candidates := make([]entities.CandidateID, 0, len(req.Candidates))
	for _, candidate := range req.Candidates {
		candidates = append(candidates, entities.CandidateID(candidate))
	}
	election, err := h.Coordinator.SetupElection(ctx, commands.SetupElectionCommand{
		ElectionID: req.ElectionID,
		Name:       req.Name,
		Candidates: candidates,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election), nil
}

func (h Handler) CloseElectionHandler(ctx context.Context) (httptransport.ElectionResponse, error) {
	election, err := h.Coordinator.CloseElection(ctx)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return electionResponse(election), nil
}

// TallyResponseFromSnapshot is shared with the live-stream endpoint so both
// render snapshots identically.
func TallyResponseFromSnapshot(snapshot entities.TallySnapshot) httptransport.TallyResponse {
	counts := make(map[string]uint64, len(snapshot.Counts))
	for candidate, count := range snapshot.Counts {
		counts[string(candidate)] = count
	}
	return httptransport.TallyResponse{
		Seq:     snapshot.Seq,
		Counts:  counts,
		Total:   snapshot.Total(),
		TakenAt: snapshot.TakenAt,
	}
}

func electionResponse(election entities.Election) httptransport.ElectionResponse {
	candidates := make([]string, 0, len(election.Candidates))
	for _, candidate := range election.Candidates {
		candidates = append(candidates, string(candidate))
	}
	return httptransport.ElectionResponse{
		ElectionID: election.ElectionID,
		Name:       election.Name,
		Candidates: candidates,
		State:      string(election.State),
		OpenedAt:   election.OpenedAt,
		ClosedAt:   election.ClosedAt,
	}
}
