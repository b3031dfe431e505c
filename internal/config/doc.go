// Package config provides configuration management for scenctl.
//
// Configuration is loaded from multiple YAML sources and merged in order,
// with later sources overriding earlier ones:
//
//  1. Default configuration (built into the binary)
//  2. User configuration (~/.config/scenctl/config.yaml)
//  3. Project configuration (./.scenctl/config.yaml)
//
// Command-line flags override the merged result when set explicitly.
//
// # Configuration Structure
//
//	root: features
//	parallel: 4
//	tags: ["~@skipme"]
//	environment: dev
//	scenarioTimeout: 2m
//	history: .scenctl/history.db
//	report:
//	  enabled: true
//	  dir: target/scenctl-reports
//	  formats: [json, cucumber]
//	environments:
//	  dev:
//	    vars:
//	      baseUrl: https://dev.example.com/api
//	  prod:
//	    vars:
//	      baseUrl: https://example.com/api
//
// Environments play the role of per-environment configuration: the selected
// environment's vars (plus "env" itself) expand ${name} placeholders in
// feature files.
package config
