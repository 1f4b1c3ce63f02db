package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "electra/contexts/election-core/vote-admission/application"
	"electra/contexts/election-core/vote-admission/domain/entities"
	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"
)

// CastVoteCommand is the write-model input for vote admission.
type CastVoteCommand struct {
	Identifier  string
	CandidateID entities.CandidateID
	Token       string
}

// CastVoteResult returns the confirmed record and its ledger receipt.
type CastVoteResult struct {
	Vote    entities.VoteRecord
	Receipt ports.LedgerReceipt
}

// CoordinatorUseCase runs the admission protocol: election/candidate/token
// checks, the single atomic registry reservation, ledger submission off the
// caller's cancellation scope, and confirmed-vote finalization.
type CoordinatorUseCase struct {
	Elections     ports.ElectionStore
	Registry      ports.VoterRegistry
	Votes         ports.VoteRepository
	Tally         ports.TallyStore
	Ledger        ports.Ledger
	Broadcaster   ports.TallyBroadcaster
	Tokens        ports.TokenChecker
	Identifiers   ports.IdentifierValidator
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

type submitOutcome struct {
	result CastVoteResult
	err    error
}

// CastVote admits at most one vote per voter identity.
//
// The registry reservation is the only concurrency checkpoint: concurrent
// casts for the same identity race on Reserve and exactly one proceeds. The
// ledger call runs on a context detached from the caller so a client-visible
// timeout never cancels an in-flight submission; when the caller gives up
// while the ledger is still pending, ErrSubmissionPending is returned and the
// background completion either confirms the vote or releases the reservation.
func (uc CoordinatorUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Identifier) == "" || strings.TrimSpace(string(cmd.CandidateID)) == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidInput
	}
	if uc.Identifiers != nil && !uc.Identifiers.ValidIdentifier(cmd.Identifier) {
		return CastVoteResult{}, domainerrors.ErrInvalidInput
	}

	election, found, err := uc.Elections.GetElection(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !found || election.State != entities.ElectionOpen {
		return CastVoteResult{}, domainerrors.ErrElectionNotOpen
	}
	if !election.HasCandidate(cmd.CandidateID) {
		return CastVoteResult{}, domainerrors.ErrInvalidCandidate
	}
	tokenIdentity, err := uc.Tokens.CheckToken(ctx, cmd.Token)
	if err != nil {
		logger.Warn("vote cast rejected by token check",
			"event", "admission_token_rejected",
			"module", "election-core/vote-admission",
			"layer", "application",
			"candidate_id", string(cmd.CandidateID),
			"error", err.Error(),
		)
		return CastVoteResult{}, domainerrors.ErrUnauthenticated
	}
	// A token authenticates exactly the identity it was issued for.
	if entities.NormalizeIdentifier(tokenIdentity) != entities.NormalizeIdentifier(cmd.Identifier) {
		logger.Warn("vote cast rejected, token bound to another identity",
			"event", "admission_token_identity_mismatch",
			"module", "election-core/vote-admission",
			"layer", "application",
			"candidate_id", string(cmd.CandidateID),
		)
		return CastVoteResult{}, domainerrors.ErrUnauthenticated
	}

	voterHash := entities.VoterHash(cmd.Identifier)
	reserved, err := uc.Registry.Reserve(ctx, voterHash)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !reserved {
		logger.Info("vote cast rejected as duplicate",
			"event", "admission_duplicate_rejected",
			"module", "election-core/vote-admission",
			"layer", "application",
			"voter_hash", voterHash,
		)
		return CastVoteResult{}, domainerrors.ErrAlreadyVoted
	}

	logger.Info("voter slot reserved",
		"event", "admission_reserved",
		"module", "election-core/vote-admission",
		"layer", "application",
		"voter_hash", voterHash,
		"candidate_id", string(cmd.CandidateID),
	)

	// Detach from the caller: a client timeout is not proof of non-submission
	// and must not abort the ledger write mid-flight.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.resolveSubmitTimeout())
	outcomes := make(chan submitOutcome, 1)
	go func() {
		defer cancel()
		outcomes <- uc.submitAndFinalize(submitCtx, voterHash, cmd.CandidateID)
	}()

	select {
	case outcome := <-outcomes:
		return outcome.result, outcome.err
	case <-ctx.Done():
		// The reservation stays; the goroutine above resolves it either way.
		logger.Warn("caller gave up while submission pending",
			"event", "admission_caller_timeout",
			"module", "election-core/vote-admission",
			"layer", "application",
			"voter_hash", voterHash,
		)
		go uc.logAsyncOutcome(voterHash, outcomes)
		return CastVoteResult{}, domainerrors.ErrSubmissionPending
	}
}

// submitAndFinalize drives one reservation to its terminal state. No lock is
// held across the ledger round trip. A terminal ledger failure releases the
// reservation before the error becomes observable; after confirmation the
// reservation is permanent.
func (uc CoordinatorUseCase) submitAndFinalize(
	ctx context.Context,
	voterHash string,
	candidateID entities.CandidateID,
) submitOutcome {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	receipt, err := uc.Ledger.Submit(ctx, ports.VoteIntent{
		CandidateID: candidateID,
		VoterHash:   voterHash,
		Timestamp:   now,
	})
	if err != nil {
		if releaseErr := uc.Registry.Release(context.WithoutCancel(ctx), voterHash); releaseErr != nil {
			logger.Error("reservation rollback failed",
				"event", "admission_rollback_failed",
				"module", "election-core/vote-admission",
				"layer", "application",
				"voter_hash", voterHash,
				"error", releaseErr.Error(),
			)
		}
		logger.Error("ledger submission failed",
			"event", "admission_submission_failed",
			"module", "election-core/vote-admission",
			"layer", "application",
			"voter_hash", voterHash,
			"candidate_id", string(candidateID),
			"error", err.Error(),
		)
		if errors.Is(err, domainerrors.ErrLedgerRejected) {
			return submitOutcome{err: domainerrors.ErrLedgerRejected}
		}
		return submitOutcome{err: domainerrors.ErrSubmissionFailed}
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return submitOutcome{err: err}
	}
	vote := entities.VoteRecord{
		VoteID:      voteID,
		VoterHash:   voterHash,
		CandidateID: candidateID,
		Signature:   receipt.Signature,
		SubmittedAt: now,
	}
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return submitOutcome{err: err}
	}
	if err := uc.Tally.Increment(ctx, candidateID); err != nil {
		return submitOutcome{err: err}
	}
	if err := uc.appendVoteEvent(ctx, "vote.confirmed", vote, now); err != nil {
		return submitOutcome{err: err}
	}

	snapshot, err := uc.Tally.Snapshot(ctx)
	if err != nil {
		return submitOutcome{err: err}
	}
	if uc.Broadcaster != nil {
		uc.Broadcaster.Publish(snapshot)
	}

	logger.Info("vote confirmed",
		"event", "admission_vote_confirmed",
		"module", "election-core/vote-admission",
		"layer", "application",
		"vote_id", vote.VoteID,
		"voter_hash", voterHash,
		"candidate_id", string(candidateID),
		"signature", receipt.Signature,
	)
	return submitOutcome{result: CastVoteResult{Vote: vote, Receipt: receipt}}
}

func (uc CoordinatorUseCase) logAsyncOutcome(voterHash string, outcomes <-chan submitOutcome) {
	logger := application.ResolveLogger(uc.Logger)
	outcome := <-outcomes
	if outcome.err != nil {
		logger.Warn("pending submission resolved with failure",
			"event", "admission_async_failed",
			"module", "election-core/vote-admission",
			"layer", "application",
			"voter_hash", voterHash,
			"error", outcome.err.Error(),
		)
		return
	}
	logger.Info("pending submission resolved with confirmation",
		"event", "admission_async_confirmed",
		"module", "election-core/vote-admission",
		"layer", "application",
		"voter_hash", voterHash,
		"vote_id", outcome.result.Vote.VoteID,
	)
}

func (uc CoordinatorUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc CoordinatorUseCase) resolveSubmitTimeout() time.Duration {
	if uc.SubmitTimeout <= 0 {
		return 30 * time.Second
	}
	return uc.SubmitTimeout
}
