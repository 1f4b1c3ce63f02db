package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	Identifier  string `json:"identifier"`
	CandidateID string `json:"candidate_id"`
}

type CastVoteResponse struct {
	VoteID      string    `json:"vote_id"`
	CandidateID string    `json:"candidate_id"`
	Signature   string    `json:"signature"`
	Slot        uint64    `json:"slot"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type VoterStatusResponse struct {
	Voted bool `json:"voted"`
}

type TallyResponse struct {
	Seq     uint64            `json:"seq"`
	Counts  map[string]uint64 `json:"counts"`
	Total   uint64            `json:"total"`
	TakenAt time.Time         `json:"taken_at"`
}

type CandidateResult struct {
	CandidateID string `json:"candidate_id"`
	Count       uint64 `json:"count"`
	Rank        int    `json:"rank"`
}

type ResultsResponse struct {
	Items []CandidateResult `json:"items"`
}

type SetupElectionRequest struct {
	ElectionID string   `json:"election_id"`
	Name       string   `json:"name"`
	Candidates []string `json:"candidates"`
}

type ElectionResponse struct {
	ElectionID string     `json:"election_id"`
	Name       string     `json:"name"`
	Candidates []string   `json:"candidates"`
	State      string     `json:"state"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}
