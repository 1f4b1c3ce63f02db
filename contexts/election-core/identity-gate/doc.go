// Package identitygate implements voter authentication inside the
// election-core context.
//
// The module owns identifier format validation, one-time-code challenge
// issuance and verification, and short-lived auth token lifecycle. Proof
// delivery (email/SMS) stays behind the Notifier port; token consumers only
// see the non-consuming CheckToken read. It keeps business rules in
// application/domain layers and isolates infrastructure concerns behind
// ports and adapters.
package identitygate
