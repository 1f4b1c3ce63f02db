package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type CandidateID string

type ElectionState string

const (
	ElectionUninitialized ElectionState = "uninitialized"
	ElectionOpen          ElectionState = "open"
	ElectionClosed        ElectionState = "closed"
)

// Election is the single-election configuration. The candidate set is fixed
// at setup and immutable while the election is open.
type Election struct {
	ElectionID string
	Name       string
	Candidates []CandidateID
	State      ElectionState
	OpenedAt   *time.Time
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (e Election) HasCandidate(candidateID CandidateID) bool {
	for _, candidate := range e.Candidates {
		if candidate == candidateID {
			return true
		}
	}
	return false
}

// NormalizeIdentifier folds an identifier to the one form the registry,
// ledger, and token-binding comparisons all operate on.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// VoterHash derives the registry/ledger key from a raw identifier, so every
// store and comparison sees one consistent form of the identity.
func VoterHash(identifier string) string {
	sum := sha256.Sum256([]byte(NormalizeIdentifier(identifier)))
	return hex.EncodeToString(sum[:])
}

// VoteRecord is created exactly once per confirmed vote and never mutated.
type VoteRecord struct {
	VoteID      string
	VoterHash   string
	CandidateID CandidateID
	Signature   string
	SubmittedAt time.Time
}

// TallySnapshot is an immutable copy-on-read view of per-candidate counts.
// Seq equals the total confirmed votes at capture time, so it strictly
// increases per confirmation and orders snapshots for observers.
type TallySnapshot struct {
	Seq     uint64
	Counts  map[CandidateID]uint64
	TakenAt time.Time
}

func (s TallySnapshot) Total() uint64 {
	var total uint64
	for _, count := range s.Counts {
		total += count
	}
	return total
}

// Clone returns an independent copy so published snapshots stay immutable.
func (s TallySnapshot) Clone() TallySnapshot {
	counts := make(map[CandidateID]uint64, len(s.Counts))
	for candidate, count := range s.Counts {
		counts[candidate] = count
	}
	return TallySnapshot{
		Seq:     s.Seq,
		Counts:  counts,
		TakenAt: s.TakenAt,
	}
}

// CandidateStanding is the read-model row for sorted results.
type CandidateStanding struct {
	CandidateID CandidateID
	Count       uint64
}
