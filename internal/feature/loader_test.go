package feature

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenctl/internal/scenario"
)

func writeFeature(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const usersFeature = `
feature: Users
tags: ["@api"]
scenarios:
  - name: list users
    tags: ["@smoke"]
    steps:
      - name: echo
        exec: {command: ["echo", "users"]}
        expect: {contains: ["users"]}
  - name: create user
    tags: ["@api", "@slow"]
    timeout: 5s
    steps:
      - name: echo
        exec: {command: ["echo", "created"]}
`

func TestDiscover_BuildsUnitsInDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "b/users.feature.yaml", usersFeature)
	writeFeature(t, dir, "a/health.feature.yml", `
feature: Health
scenarios:
  - name: ping
    steps:
      - name: echo
        exec: {command: ["echo", "ok"]}
`)
	writeFeature(t, dir, "notes.yaml", "not: a feature")
	writeFeature(t, dir, ".hidden/skip.feature.yaml", usersFeature)

	units, err := NewSource(nil).Discover(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, "a/health.feature.yml:ping", units[0].ID)
	assert.Equal(t, "b/users.feature.yaml:list users", units[1].ID)
	assert.Equal(t, "b/users.feature.yaml:create user", units[2].ID)

	for i, u := range units {
		assert.Equal(t, i, u.Index)
	}

	assert.Equal(t, []string{"api", "smoke"}, units[1].Tags)
	assert.Equal(t, []string{"api", "slow"}, units[2].Tags)
	assert.Equal(t, "Users", units[2].Feature)
	assert.Equal(t, "b/users.feature.yaml", units[2].Path)
	assert.Equal(t, "5s", units[2].Timeout.String())
	assert.Empty(t, units[0].Tags)
}

func TestDiscover_UnitsRun(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "users.feature.yaml", usersFeature)

	units, err := NewSource(nil).Discover(context.Background(), dir)
	require.NoError(t, err)

	for _, u := range units {
		outcome := u.Run(context.Background())
		assert.Equal(t, scenario.KindSuccess, outcome.Kind, "%s: %s", u.ID, outcome.Message)
	}
}

func TestDiscover_WithHTTPClient(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	writeFeature(t, dir, "health.feature.yaml", `
feature: Health
scenarios:
  - name: ping
    steps:
      - name: get
        http: {url: "${baseUrl}/health"}
        expect: {status: 200}
`)
	vars := map[string]string{"baseUrl": server.URL}

	units, err := NewSource(vars).Discover(context.Background(), dir)
	require.NoError(t, err)
	outcome := units[0].Run(context.Background())
	assert.Equal(t, scenario.KindError, outcome.Kind, "the test certificate is not trusted by default")

	units, err = NewSource(vars, WithHTTPClient(server.Client())).Discover(context.Background(), dir)
	require.NoError(t, err)
	outcome = units[0].Run(context.Background())
	assert.Equal(t, scenario.KindSuccess, outcome.Kind, outcome.Message)
}

func TestDiscover_SingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "users.feature.yaml", usersFeature)

	units, err := NewSource(nil).Discover(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "users.feature.yaml:list users", units[0].ID)
}

func TestDiscover_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dir string) string
		reason string
	}{
		{
			name:   "missing root",
			setup:  func(t *testing.T, dir string) string { return filepath.Join(dir, "nope") },
			reason: "unreadable scenario root",
		},
		{
			name:   "no feature files",
			setup:  func(t *testing.T, dir string) string { return dir },
			reason: "no feature files found",
		},
		{
			name: "invalid yaml",
			setup: func(t *testing.T, dir string) string {
				writeFeature(t, dir, "bad.feature.yaml", ":::not yaml\x00")
				return dir
			},
			reason: "invalid feature file",
		},
		{
			name: "schema violation",
			setup: func(t *testing.T, dir string) string {
				writeFeature(t, dir, "bad.feature.yaml", `
feature: Bad
scenarios:
  - name: no action
    steps:
      - name: nothing
`)
				return dir
			},
			reason: "invalid feature file",
		},
		{
			name: "duplicate scenario",
			setup: func(t *testing.T, dir string) string {
				writeFeature(t, dir, "dup.feature.yaml", `
feature: Dup
scenarios:
  - name: same
    steps:
      - {name: a, exec: {command: ["true"]}}
  - name: same
    steps:
      - {name: b, exec: {command: ["true"]}}
`)
				return dir
			},
			reason: "duplicate scenario",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.setup(t, t.TempDir())

			units, err := NewSource(nil).Discover(context.Background(), root)
			assert.Nil(t, units)
			require.Error(t, err)

			var de *scenario.DiscoveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.reason, de.Reason)
			assert.Equal(t, root, de.Root)
		})
	}
}

func TestDiscover_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "users.feature.yaml", usersFeature)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSource(nil).Discover(ctx, dir)
	var de *scenario.DiscoveryError
	require.True(t, errors.As(err, &de))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIsFeatureFile(t *testing.T) {
	assert.True(t, IsFeatureFile("a.feature.yaml"))
	assert.True(t, IsFeatureFile("a.feature.yml"))
	assert.False(t, IsFeatureFile("a.yaml"))
	assert.False(t, IsFeatureFile("a.feature"))
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"api", "smoke", "slow"}, mergeTags([]string{"@api", "smoke"}, []string{"api", "@slow", "@smoke"}))
	assert.Nil(t, mergeTags(nil, nil))
}
