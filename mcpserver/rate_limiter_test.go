package mcpserver

import (
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterTokenBucket(t *testing.T) {
	r := NewRateLimiter(2, 2)
	require.NotNil(t, r)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	allowed, _ := r.AllowAt("alice", now)
	assert.True(t, allowed)
	allowed, _ = r.AllowAt("alice", now)
	assert.True(t, allowed)

	allowed, retryAfter := r.AllowAt("alice", now)
	assert.False(t, allowed)
	assert.Equal(t, 500*time.Millisecond, retryAfter)

	// A denied request does not consume a token
	allowed, _ = r.AllowAt("alice", now.Add(500*time.Millisecond))
	assert.True(t, allowed)

	allowed, _ = r.AllowAt("", now)
	assert.True(t, allowed)
	assert.Equal(t, 2, r.Keys())
}

func TestNilRateLimiterAllowsEverything(t *testing.T) {
	r := NewRateLimiter(0, 10)
	assert.Nil(t, r)

	for i := 0; i < 100; i++ {
		allowed, retryAfter := r.Allow("anyone")
		require.True(t, allowed)
		require.Zero(t, retryAfter)
	}
	assert.Equal(t, 0, r.Keys())
}

func TestInputValidator(t *testing.T) {
	tool := mcp.NewTool("probe",
		mcp.WithString("sample", mcp.Required()),
		mcp.WithNumber("iterations"),
	)
	v := NewInputValidator(32)

	assert.NoError(t, v.ValidateArguments(tool, map[string]interface{}{"sample": "abc", "iterations": 2.0}))

	err := v.ValidateArguments(tool, map[string]interface{}{"sample": strings.Repeat("a", 40)})
	var tooLarge *inputTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 32, tooLarge.limit)

	err = v.ValidateArguments(tool, map[string]interface{}{"sample": "a", "zeta": 1.0, "alpha": 2.0})
	assert.EqualError(t, err, "invalid arguments for probe: unknown [alpha zeta]")

	err = v.ValidateArguments(tool, map[string]interface{}{"iterations": 2.0})
	assert.EqualError(t, err, "invalid arguments for probe: sample is required")

	unbounded := NewInputValidator(0)
	assert.NoError(t, unbounded.ValidateArguments(tool, map[string]interface{}{"sample": strings.Repeat("a", 4096)}))
}
