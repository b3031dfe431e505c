// Package mcptools exposes scenario listing and execution as MCP tools so
// AI assistants can drive scenctl over stdio.
package mcptools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"scenctl/internal/feature"
	"scenctl/internal/report"
	"scenctl/internal/runner"
	"scenctl/internal/scenario"
	"scenctl/internal/tags"
	"scenctl/pkg/logging"
)

const subsystem = "MCP"

// Options configure the tools
type Options struct {
	// Root is the scenario root used when a call does not name one
	Root string
	// Environment is used when a call does not name one
	Environment string
	// Defaults is the run configuration calls start from
	Defaults runner.Config
	// Vars resolves an environment name to its variables
	Vars func(env string) (map[string]string, error)
	// NewSource builds the scenario source for a set of variables.
	// Defaults to feature.NewSource.
	NewSource func(vars map[string]string) scenario.Source
}

// Tools holds the handlers of the scenario tools
type Tools struct {
	opts Options
}

// NewTools creates the tool handlers
func NewTools(opts Options) *Tools {
	if opts.NewSource == nil {
		opts.NewSource = func(vars map[string]string) scenario.Source {
			return feature.NewSource(vars)
		}
	}
	if opts.Vars == nil {
		opts.Vars = func(env string) (map[string]string, error) {
			return map[string]string{"env": env}, nil
		}
	}
	return &Tools{opts: opts}
}

// NewServer creates an MCP server with the scenario tools registered
func NewServer(version string, t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		"scenctl",
		version,
		server.WithToolCapabilities(true),
	)
	s.AddTool(listTool(), t.handleList)
	s.AddTool(runTool(), t.handleRun)
	return s
}

// ServeStdio serves s on stdin/stdout until the client disconnects
func ServeStdio(s *server.MCPServer) error {
	logging.Info(subsystem, "Serving scenario tools on stdio")
	return server.ServeStdio(s)
}

func listTool() mcp.Tool {
	return mcp.NewTool("scenario_list",
		mcp.WithDescription("List the scenarios selected by a tag expression"),
		mcp.WithString("root",
			mcp.Description("Directory or feature file to discover scenarios in"),
		),
		mcp.WithString("tags",
			mcp.Description("Tag expression, e.g. \"@api ~@skipme\""),
		),
		mcp.WithString("environment",
			mcp.Description("Environment whose variables expand ${name} placeholders"),
		),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("scenario_run",
		mcp.WithDescription("Run the scenarios selected by a tag expression and return the JSON report"),
		mcp.WithString("root",
			mcp.Description("Directory or feature file to discover scenarios in"),
		),
		mcp.WithString("tags",
			mcp.Description("Tag expression, e.g. \"@api ~@skipme\""),
		),
		mcp.WithString("environment",
			mcp.Description("Environment whose variables expand ${name} placeholders"),
		),
		mcp.WithNumber("parallel",
			mcp.Description("Number of concurrent workers"),
		),
	)
}

// callArgs are the common arguments of both tools
type callArgs struct {
	root string
	env  string
	expr tags.Expression
}

func (t *Tools) parseArgs(request mcp.CallToolRequest) (callArgs, error) {
	args := request.GetArguments()

	a := callArgs{root: t.opts.Root, env: t.opts.Environment}
	if root, ok := args["root"].(string); ok && root != "" {
		a.root = root
	}
	if env, ok := args["environment"].(string); ok && env != "" {
		a.env = env
	}

	expr := t.opts.Defaults.Tags
	if raw, ok := args["tags"].(string); ok && raw != "" {
		compiled, err := tags.Compile(raw)
		if err != nil {
			return a, err
		}
		expr = compiled
	}
	a.expr = expr
	return a, nil
}

func (t *Tools) newRunner(env string, rep runner.Reporter) (*runner.Runner, error) {
	vars, err := t.opts.Vars(env)
	if err != nil {
		return nil, err
	}
	return runner.New(t.opts.NewSource(vars), rep), nil
}

type listedScenario struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Feature string   `json:"feature,omitempty"`
	Path    string   `json:"path,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// handleList handles the scenario_list MCP tool
func (t *Tools) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := t.parseArgs(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid tag expression: %v", err)), nil
	}

	r, err := t.newRunner(a.env, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	units, err := r.Select(ctx, a.root, a.expr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	listed := make([]listedScenario, 0, len(units))
	for _, u := range units {
		listed = append(listed, listedScenario{ID: u.ID, Name: u.Name, Feature: u.Feature, Path: u.Path, Tags: u.Tags})
	}
	jsonData, err := json.MarshalIndent(listed, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format scenarios: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleRun handles the scenario_run MCP tool
func (t *Tools) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := t.parseArgs(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid tag expression: %v", err)), nil
	}

	cfg := t.opts.Defaults
	cfg.Tags = a.expr
	cfg.Environment = a.env
	if parallel, ok := request.GetArguments()["parallel"].(float64); ok && parallel > 0 {
		cfg.Parallelism = int(parallel)
	}

	var out bytes.Buffer
	r, err := t.newRunner(a.env, report.New(&out, report.WithStyle(report.StyleJSON)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := r.Run(ctx, a.root, cfg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.ReportErr != nil {
		logging.Warn(subsystem, "Report output incomplete: %v", res.ReportErr)
	}
	return mcp.NewToolResultText(out.String()), nil
}
