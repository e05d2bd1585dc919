package compliance

import "fmt"

// ComplianceMode selects how aggressively validation rejects ambiguity.
//
// Strict mode prefers explicit failure over silent acceptance: any outcome
// that is not a confirmed match (or an accepted waiver) becomes an error.
// Permissive mode always returns the outcome and lets the caller decide.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// ParseMode accepts "permissive" or "strict".
func ParseMode(s string) (ComplianceMode, error) {
	switch s {
	case "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("unknown compliance mode %q", s)
	}
}
