// Package scenario defines the units the runner executes and the outcomes
// they produce.
//
// A Unit is one independently executable test case: an identifier, a set of
// tags and a Run function. Units are produced by a Source (see the feature
// package for the YAML implementation) and never change after construction.
//
// Every execution of a Unit yields exactly one Outcome:
//   - Success: the scenario ran to completion and all expectations held
//   - Failure: an expectation did not hold (assertion-level)
//   - Error: the scenario could not be run as written (unexpected fault,
//     panic, timeout, transport error)
package scenario
