// Package feature implements the YAML scenario source for scenctl.
//
// A feature file (*.feature.yaml or *.feature.yml) groups scenarios that
// share tags and optional background steps:
//
//	feature: Users API
//	tags: ["@api"]
//	background:
//	  - name: health
//	    http: {method: GET, url: "${baseUrl}/health"}
//	    expect: {status: 200}
//	scenarios:
//	  - name: create user
//	    tags: ["@smoke"]
//	    timeout: 30s
//	    steps:
//	      - name: create
//	        http:
//	          method: POST
//	          url: "${baseUrl}/users"
//	          body: '{"name":"ada"}'
//	        expect: {status: 201, contains: ["ada"]}
//	        retry: {count: 2, delay: 500ms}
//	      - name: cli
//	        exec: {command: ["echo", "hi"]}
//	        expect: {exit_code: 0, contains: ["hi"]}
//
// Files are validated against the embedded JSON schema before decoding.
// Each scenario becomes one scenario.Unit whose ID is
// "<path relative to root>:<scenario name>" and whose tags are the union of
// feature and scenario tags. Placeholders of the form ${name} are expanded
// from the selected environment's variables, then from the process
// environment, when the step runs.
package feature
