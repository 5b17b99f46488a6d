package model

// Outcome reports how an idempotent operation ended when "nothing to do" is a normal result.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnchanged
	OutcomeNotFound
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}
