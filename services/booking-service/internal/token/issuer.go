// Package token issues the human-facing queue numbers printed on booking
// confirmations ("KBR08", "KBR09", ...). Tokens are session-scoped queue
// positions, not global identifiers: each session context owns one Issuer,
// and logout resets the counter to its configured baseline.
package token

import "fmt"

const prefix = "KBR"

// DefaultBaseline is where a fresh session's queue starts.
const DefaultBaseline = 1

// Issuer hands out strictly increasing queue tokens. It is deliberately an
// explicit object passed by handle into the appointment store, never a
// package-level counter, so each session (and each test) gets its own
// sequence.
//
// Not safe for concurrent use; the owning session context serializes all
// calls (see store.Store).
type Issuer struct {
	baseline int
	next     int
}

func NewIssuer(baseline int) *Issuer {
	if baseline < 0 {
		baseline = DefaultBaseline
	}
	return &Issuer{baseline: baseline, next: baseline}
}

// Next returns the next token. Two calls never return the same value within
// one issuer lifetime. Counters past 99 simply grow a digit ("KBR100");
// the two-digit padding is a minimum, not a wrap point.
func (i *Issuer) Next() string {
	t := fmt.Sprintf("%s%02d", prefix, i.next)
	i.next++
	return t
}

// Reset returns the counter to its baseline. Called on session boundary
// (logout).
func (i *Issuer) Reset() {
	i.next = i.baseline
}
