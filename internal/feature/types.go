package feature

import "time"

// Feature is the decoded form of one feature file
type Feature struct {
	// Feature is the feature name
	Feature string `yaml:"feature"`
	// Description is free text shown in reports
	Description string `yaml:"description,omitempty"`
	// Tags apply to every scenario in the file
	Tags []string `yaml:"tags,omitempty"`
	// Background steps run before the steps of every scenario
	Background []Step `yaml:"background,omitempty"`
	// Scenarios are the executable test cases
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one test case within a feature
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Tags        []string      `yaml:"tags,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Steps       []Step        `yaml:"steps"`
}

// Step is a single action with its expectation. Exactly one of HTTP and
// Exec is set.
type Step struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	HTTP        *HTTPRequest  `yaml:"http,omitempty"`
	Exec        *Command      `yaml:"exec,omitempty"`
	Expect      Expectation   `yaml:"expect,omitempty"`
	Retry       *RetryConfig  `yaml:"retry,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// HTTPRequest describes an HTTP call
type HTTPRequest struct {
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

// Command describes a local process invocation
type Command struct {
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Stdin   string            `yaml:"stdin,omitempty"`
}

// Expectation defines what a step must observe
type Expectation struct {
	// Status is the expected HTTP status; 0 accepts any status below 400
	Status int `yaml:"status,omitempty"`
	// ExitCode is the expected process exit code
	ExitCode int `yaml:"exit_code,omitempty"`
	// Contains lists text the response body or output must contain (case-insensitive)
	Contains []string `yaml:"contains,omitempty"`
	// NotContains lists text that must not appear (case-insensitive)
	NotContains []string `yaml:"not_contains,omitempty"`
}

// RetryConfig defines retry behavior for a step
type RetryConfig struct {
	// Count is the number of retry attempts after the first
	Count int `yaml:"count"`
	// Delay between retry attempts
	Delay time.Duration `yaml:"delay,omitempty"`
	// BackoffMultiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"`
}
