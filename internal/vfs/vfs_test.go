package vfs_test

import (
	"testing"

	"github.com/EricCrosson/nil/internal/protocol"
	"github.com/EricCrosson/nil/internal/vfs"
	"github.com/stretchr/testify/require"
)

func TestSetURIContentInternsAndRecordsChange(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "{ x = 1; }")
	again := v.SetURIContent("file:///w/a.nix", "{ x = 2; }")
	require.Equal(t, id, again, "same uri must keep the same FileId")

	content, err := v.Content(id)
	require.NoError(t, err)
	require.Equal(t, "{ x = 2; }", content)

	cs := v.TakeChange()
	require.Len(t, cs.Changes, 2)
	require.Equal(t, "{ x = 2; }", cs.Changes[1].Content)

	// Change was cleared.
	require.Empty(t, v.TakeChange().Changes)
}

func TestOpenCloseRoundTripPreservesContent(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "hello")
	v.TakeChange()

	// didClose removes bookkeeping elsewhere but never touches VFS content.
	content, err := v.Content(id)
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}

func TestChangeFileContentWholeDocument(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "old")
	require.NoError(t, v.ChangeFileContent(id, nil, "new"))
	content, err := v.Content(id)
	require.NoError(t, err)
	require.Equal(t, "new", content)
}

func TestChangeFileContentIncrementalRange(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "{ x = 1; }")
	// Replace "1" with "42" at byte offset [6,7).
	require.NoError(t, v.ChangeFileContent(id, &[2]int{6, 7}, "42"))
	content, err := v.Content(id)
	require.NoError(t, err)
	require.Equal(t, "{ x = 42; }", content)
}

func TestChangeFileContentRejectsOutOfBoundsRange(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "short")
	err := v.ChangeFileContent(id, &[2]int{0, 100}, "x")
	require.ErrorIs(t, err, vfs.ErrRangeOutOfBounds)

	// Surrounding edits still apply: a second, valid edit on the same file
	// succeeds even though the previous one failed.
	require.NoError(t, v.ChangeFileContent(id, &[2]int{0, 5}, "longer"))
	content, err := v.Content(id)
	require.NoError(t, err)
	require.Equal(t, "longer", content)
}

func TestChangeNotificationForUnknownURIIsNoOp(t *testing.T) {
	v := vfs.New()
	_, err := v.FileForURI("file:///missing.nix")
	require.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestByteRangeConversion(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "line one\nline two\n")
	r, err := v.ByteRange(id, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 0},
		End:   protocol.Position{Line: 1, Character: 4},
	})
	require.NoError(t, err)
	require.Equal(t, &[2]int{9, 13}, r)
}

func TestURIForFileRoundTrip(t *testing.T) {
	v := vfs.New()
	id := v.SetURIContent("file:///w/a.nix", "x")
	require.Equal(t, protocol.DocumentURI("file:///w/a.nix"), v.URIForFile(id))
}

func TestFileForPathDoesNotFindURIEntry(t *testing.T) {
	v := vfs.New()
	// Client already has the file open under a URI.
	opened := v.SetURIContent("file:///w/flake.nix", "from editor")
	v.TakeChange()

	// A path lookup does not see the client-managed entry, which is why
	// flake bootstrap looks the root file up by URI before trying its path.
	_, err := v.FileForPath("/w/flake.nix")
	require.ErrorIs(t, err, vfs.ErrNotFound, "bootstrap must check FileForURI, not assume a path entry exists")
	_ = opened
}

func TestFlakeInfoRoundTrip(t *testing.T) {
	v := vfs.New()
	require.Nil(t, v.FlakeInfo())
	id := v.SetURIContent("file:///w/flake.nix", "{}")
	v.SetFlakeInfo(&vfs.FlakeInfo{RootFile: id, InputStorePaths: map[string]string{"nixpkgs": "/nix/store/abc"}})
	require.Equal(t, id, v.FlakeInfo().RootFile)
	v.SetFlakeInfo(nil)
	require.Nil(t, v.FlakeInfo())
}
