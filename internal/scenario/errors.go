package scenario

import "fmt"

// DiscoveryError reports that a scenario root could not be turned into units.
// It is fatal: nothing is scheduled when discovery fails.
type DiscoveryError struct {
	Root   string
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery failed for %s: %s: %v", e.Root, e.Reason, e.Err)
	}
	return fmt.Sprintf("discovery failed for %s: %s", e.Root, e.Reason)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a DiscoveryError
func NewDiscoveryError(root, reason string, err error) *DiscoveryError {
	return &DiscoveryError{Root: root, Reason: reason, Err: err}
}
