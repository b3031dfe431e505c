package scenario

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeConstructors(t *testing.T) {
	assert.True(t, Success().Passed())

	f := Failure("expected 5 got 4")
	assert.Equal(t, KindFailure, f.Kind)
	assert.Equal(t, "expected 5 got 4", f.Message)
	assert.False(t, f.Passed())

	e := Error("boom", "stack")
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "stack", e.Cause)
}

func TestUnit_HasTag(t *testing.T) {
	u := &Unit{ID: "a", Tags: []string{"smoke", "api"}}
	assert.True(t, u.HasTag("smoke"))
	assert.False(t, u.HasTag("@smoke"))
	assert.False(t, u.HasTag("slow"))
}

func TestNewResult(t *testing.T) {
	u := &Unit{ID: "users.feature.yaml:create", Name: "create", Feature: "Users", Path: "users.feature.yaml", Tags: []string{"api"}, Index: 3}
	started := time.Now()
	r := NewResult(u, Success(), started, time.Second)

	assert.Equal(t, u.ID, r.ID)
	assert.Equal(t, 3, r.Index)
	assert.Equal(t, "Users", r.Feature)
	assert.Equal(t, time.Second, r.Duration)
	assert.Equal(t, started, r.Started)
}

func TestDiscoveryError(t *testing.T) {
	err := NewDiscoveryError("features", "unreadable root", fs.ErrNotExist)
	assert.Contains(t, err.Error(), "features")
	assert.Contains(t, err.Error(), "unreadable root")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var de *DiscoveryError
	assert.True(t, errors.As(error(err), &de))

	bare := NewDiscoveryError("x", "no feature files found", nil)
	assert.Equal(t, "discovery failed for x: no feature files found", bare.Error())
}
