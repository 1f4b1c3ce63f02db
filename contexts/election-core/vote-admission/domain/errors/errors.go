package errors

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid vote input")
	ErrInvalidCandidate        = errors.New("candidate is not on the ballot")
	ErrUnauthenticated         = errors.New("missing or invalid auth token")
	ErrAlreadyVoted            = errors.New("voter has already cast a vote")
	ErrElectionNotOpen         = errors.New("election is not open for voting")
	ErrElectionStateTransition = errors.New("invalid election state transition")
	ErrElectionNotFound        = errors.New("election is not configured")
	ErrLedgerUnavailable       = errors.New("ledger is unavailable")
	ErrLedgerRejected          = errors.New("ledger rejected the vote")
	ErrSubmissionFailed        = errors.New("vote submission failed")
	ErrSubmissionPending       = errors.New("vote submission still pending")
)
