package report

import (
	"fmt"

	"scenctl/internal/summary"
)

// Verdict is the overall outcome of a run
type Verdict int

const (
	// Pass means no scenario failed or errored
	Pass Verdict = iota
	// Fail means at least one scenario failed or errored
	Fail
)

// VerdictOf derives the verdict of a summary
func VerdictOf(s summary.RunSummary) Verdict {
	if s.Succeeded() {
		return Pass
	}
	return Fail
}

// ExitCode is the process exit status for the verdict
func (v Verdict) ExitCode() int {
	if v == Pass {
		return 0
	}
	return 1
}

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText renders the verdict as "pass" or "fail"
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses "pass" or "fail"
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*v = Pass
	case "fail":
		*v = Fail
	default:
		return fmt.Errorf("unknown verdict %q", string(text))
	}
	return nil
}
