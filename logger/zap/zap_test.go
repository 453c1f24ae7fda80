package zap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndWith(t *testing.T) {
	root := New("")
	require.NotNil(t, root)

	child := root.With("planner")
	require.NotNil(t, child)

	// Should not panic across every logging style.
	child.Info("hello")
	child.Infof("hello %s", "world")
	child.Infow("hello", "k", "v")
	require.NoError(t, root.Sync())
}
