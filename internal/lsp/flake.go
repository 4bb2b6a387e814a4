package lsp

import (
	"context"
	"os"
	"path/filepath"

	errors "golang.org/x/xerrors"

	"github.com/EricCrosson/nil/internal/protocol"
	"github.com/EricCrosson/nil/internal/resolver"
	"github.com/EricCrosson/nil/internal/vfs"
)

// flakeLoadResult is the outcome of bootstrapFlake: either the workspace
// isn't a flake at all, or it is, carrying the root FileId and whatever
// inputs the resolver could realize (spec §4.5 steps 1-6).
type flakeLoadResult struct {
	isFlake       bool
	rootFile      vfs.FileId
	inputs        map[string]resolver.Input
	missingInputs bool
}

// loadFlake bootstraps the workspace's flake with the nix binary the
// configuration holds when it is called (spec §4.5). handleInitialized
// calls it before issuing the initial workspace/configuration pull, so a
// nixBinary set by that pull does not apply to this bootstrap.
func (s *Server) loadFlake(ctx context.Context) {
	if s.config == nil {
		return
	}
	cfg := s.config.Current()
	rootPath := cfg.RootPath
	binary := cfg.NixBinary

	s.submit(func() Event {
		result, err := s.bootstrapFlake(ctx, rootPath, binary)
		return flakeLoadedEvent{result: result, err: err}
	})
}

// bootstrapFlake implements spec §4.5 verbatim:
//  1. read flake.nix; not-found => NotFlake, other I/O error => propagate.
//  2. under the vfs write lock, reuse the root file's FileId if the client
//     already had it open, otherwise mint one from the disk content.
//  3. read flake.lock; not-found => IsFlake with empty inputs.
//  4-6. hand the lock buffer to the resolver and keep only inputs whose
//     store path exists on disk.
func (s *Server) bootstrapFlake(ctx context.Context, rootPath, binary string) (flakeLoadResult, error) {
	rootFilePath := filepath.Join(rootPath, "flake.nix")
	content, err := os.ReadFile(rootFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return flakeLoadResult{isFlake: false}, nil
		}
		return flakeLoadResult{}, errors.Errorf("reading flake.nix: %w", err)
	}

	rootID := s.rootFlakeFileID(rootFilePath, string(content))

	lockBytes, err := os.ReadFile(filepath.Join(rootPath, "flake.lock"))
	if err != nil {
		if os.IsNotExist(err) {
			return flakeLoadResult{isFlake: true, rootFile: rootID}, nil
		}
		return flakeLoadResult{}, errors.Errorf("reading flake.lock: %w", err)
	}

	resolved, missing, err := s.resolver.ResolveLockedInputs(ctx, binary, lockBytes)
	if err != nil {
		return flakeLoadResult{}, errors.Errorf("resolving flake inputs: %w", err)
	}
	return flakeLoadResult{isFlake: true, rootFile: rootID, inputs: resolved, missingInputs: missing}, nil
}

// rootFlakeFileID reuses the FileId the client already has open for
// rootFilePath, if any, rather than minting a second one for the same
// content (spec §4.5 step 2).
func (s *Server) rootFlakeFileID(rootFilePath, content string) vfs.FileId {
	if id, err := s.vfsStore.FileForURI(protocol.DocumentURI("file://" + rootFilePath)); err == nil {
		return id
	}
	if id, err := s.vfsStore.FileForPath(rootFilePath); err == nil {
		return id
	}
	return s.vfsStore.SetPathContent(rootFilePath, content)
}

// handleFlakeLoaded commits the bootstrap outcome to the vfs side table: on
// NotFlake it clears FlakeInfo, on IsFlake it records the root file and
// resolved inputs and warns the client if any input's store path was
// missing on disk (spec §4.3's LoadFlake event handling).
func (s *Server) handleFlakeLoaded(ctx context.Context, ev flakeLoadedEvent) {
	if ev.err != nil {
		s.log.Warn().Err(ev.err).Msg("failed to load flake")
		_ = sendShowMessage(s, ctx, protocol.Warning, "failed to load flake: "+ev.err.Error())
		return
	}

	if !ev.result.isFlake {
		s.flakeInfo.Store(nil)
		s.vfsStore.SetFlakeInfo(nil)
		return
	}

	storePaths := make(map[string]string, len(ev.result.inputs))
	for name, in := range ev.result.inputs {
		storePaths[name] = in.StorePath
	}
	info := &vfs.FlakeInfo{RootFile: ev.result.rootFile, InputStorePaths: storePaths}
	s.flakeInfo.Store(info)
	s.vfsStore.SetFlakeInfo(info)

	if ev.result.missingInputs {
		_ = sendShowMessage(s, ctx, protocol.Warning, "one or more flake inputs have no store path on disk")
	}
}
