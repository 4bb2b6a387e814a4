package analysis_test

import (
	"testing"

	"github.com/EricCrosson/nil/internal/analysis"
	"github.com/EricCrosson/nil/internal/vfs"
	"github.com/stretchr/testify/require"
)

func TestSnapshotObservesChangeAndNoLater(t *testing.T) {
	host := analysis.NewMemHost()

	host.ApplyChange(vfs.ChangeSet{Changes: []vfs.Change{{File: 1, Content: "v1"}}})
	snap := host.Snapshot()

	content, ok := snap.Content(1)
	require.True(t, ok)
	require.Equal(t, "v1", content)

	// A later change must not be visible through the earlier snapshot.
	host.ApplyChange(vfs.ChangeSet{Changes: []vfs.Change{{File: 1, Content: "v2"}}})
	content, ok = snap.Content(1)
	require.True(t, ok)
	require.Equal(t, "v1", content, "snapshot must not observe writes committed after it was taken")

	fresh := host.Snapshot()
	content, ok = fresh.Content(1)
	require.True(t, ok)
	require.Equal(t, "v2", content)
}
