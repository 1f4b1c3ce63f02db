// Package voteadmission implements the vote-admission protocol inside the
// election-core context.
//
// The module owns the at-most-once voter registry, the append-only ledger
// submission with bounded retry, the confirmed-vote tally mirror, and live
// tally fan-out to observers. The admission coordinator in
// application/commands is the single writer of election state and the only
// path that moves a voter from reserved to confirmed. Infrastructure stays
// behind ports and adapters.
package voteadmission
