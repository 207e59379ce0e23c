package models

import "fmt"

// Phase mirrors the election contract's phase enum. The wire values 0-3 are
// fixed by the contract; PhaseExpired is synthesized locally when an ACTIVE
// election has passed its cached deadline and is never sent to the ledger.
type Phase uint8

const (
	PhaseCreated        Phase = 0
	PhaseActive         Phase = 1
	PhaseEnded          Phase = 2
	PhaseResultDeclared Phase = 3

	PhaseExpired Phase = 100
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "CREATED"
	case PhaseActive:
		return "ACTIVE"
	case PhaseEnded:
		return "ENDED"
	case PhaseResultDeclared:
		return "RESULT_DECLARED"
	case PhaseExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "CREATED":
		return PhaseCreated, nil
	case "ACTIVE":
		return PhaseActive, nil
	case "ENDED":
		return PhaseEnded, nil
	case "RESULT_DECLARED":
		return PhaseResultDeclared, nil
	case "EXPIRED":
		return PhaseExpired, nil
	default:
		return 0, fmt.Errorf("unknown phase: %q", s)
	}
}

// canonical maps the derived EXPIRED value back onto the ledger state it
// shadows, so lifecycle ordering can be compared on contract values alone.
func (p Phase) canonical() Phase {
	if p == PhaseExpired {
		return PhaseActive
	}
	return p
}

// Before reports whether p is an earlier lifecycle stage than q. The
// lifecycle only moves forward: CREATED < ACTIVE < ENDED < RESULT_DECLARED.
func (p Phase) Before(q Phase) bool {
	return p.canonical() < q.canonical()
}
