package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, 1024, c.Executor.BatchSize)
	assert.Equal(t, 30*time.Second, c.Timeouts.Statement)
	assert.Equal(t, 128, c.Parser.MaxRecursionDepth)
	assert.Equal(t, 16, c.HNSW.M)
	assert.Equal(t, 1.2, c.FullText.K1)
	assert.Equal(t, "@every 1m", c.Compaction.Schedule)
	assert.Equal(t, 256, c.LiveQuery.ChannelCapacity)
	assert.Equal(t, time.Hour, c.ChangeFeed.DefaultRetention)
}

func TestLoadWithOverlay(t *testing.T) {
	c, err := Load("", map[string]any{
		"executor": map[string]any{"batch_size": 64},
	})
	require.NoError(t, err)
	assert.Equal(t, 64, c.Executor.BatchSize)
	// Unset sections keep their defaults.
	assert.Equal(t, 128, c.Parser.MaxRecursionDepth)
}

func TestGetSet(t *testing.T) {
	orig := Get()
	defer Set(orig)

	c := defaultConfig()
	c.Executor.BatchSize = 7
	Set(c)
	assert.Equal(t, 7, Get().Executor.BatchSize)
}

func TestSpillDirOrTemp(t *testing.T) {
	c := defaultConfig()
	assert.NotEmpty(t, c.SpillDirOrTemp())
	c.Executor.SpillDir = "/tmp/strata-spill"
	assert.Equal(t, "/tmp/strata-spill", c.SpillDirOrTemp())
}
