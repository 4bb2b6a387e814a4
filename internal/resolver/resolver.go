// Package resolver resolves a flake's locked inputs to their realized Nix
// store paths. It owns both concerns spec §1 assigns to "the lock-file
// resolver": parsing flake.lock's JSON graph and invoking the external nix
// binary to realize each input's store path. The core event loop never
// touches the lock-file format itself.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"

	errors "golang.org/x/xerrors"
)

// Input describes one locked flake input once resolved: the ref recorded in
// flake.lock and the realized store path on disk.
type Input struct {
	Ref       string
	StorePath string
}

// Resolver resolves a flake.lock buffer's locked inputs to store paths. The
// production path shells out to nix; tests substitute FakeResolver.
//
// ResolveLockedInputs keeps only inputs whose store path exists on disk
// (spec §4.5 step 5); missingInputs reports whether any locked input was
// dropped for that reason.
type Resolver interface {
	ResolveLockedInputs(ctx context.Context, binaryPath string, lockBytes []byte) (resolved map[string]Input, missingInputs bool, err error)
}

// lockFile is the subset of flake.lock's schema this resolver needs: each
// node's name and the ref it was locked to. The dependency graph's edges
// and hashing scheme are irrelevant to store-path resolution.
type lockFile struct {
	Root  string `json:"root"`
	Nodes map[string]struct {
		Locked map[string]interface{} `json:"locked"`
	} `json:"nodes"`
}

// ExecResolver invokes an external nix binary to resolve store paths,
// mirroring load_flake's delegation of lock-graph parsing and realization
// to an external process rather than doing either itself.
type ExecResolver struct{}

func (r *ExecResolver) ResolveLockedInputs(ctx context.Context, binaryPath string, lockBytes []byte) (map[string]Input, bool, error) {
	var lock lockFile
	if err := json.Unmarshal(lockBytes, &lock); err != nil {
		return nil, false, errors.Errorf("parsing flake.lock: %w", err)
	}

	binary := binaryPath
	if binary == "" {
		binary = "nix"
	}

	resolved := make(map[string]Input)
	requested := 0
	for name, node := range lock.Nodes {
		if name == lock.Root {
			continue
		}
		requested++

		ref, err := json.Marshal(node.Locked)
		if err != nil {
			return nil, false, errors.Errorf("marshaling locked input %q: %w", name, err)
		}

		storePath, err := r.realize(ctx, binary, string(ref))
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(storePath); statErr != nil {
			continue
		}
		resolved[name] = Input{Ref: string(ref), StorePath: storePath}
	}

	return resolved, len(resolved) < requested, nil
}

// realize shells out to nix to turn a locked input ref into a concrete
// store path.
func (r *ExecResolver) realize(ctx context.Context, binary, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "eval", "--raw", "--impure", "--expr", "builtins.storePath "+ref)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Errorf("%s: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// FakeResolver is a deterministic, in-memory Resolver for tests. It skips
// both JSON parsing and the nix invocation: Resolved is keyed exactly as
// ResolveLockedInputs's result would be.
type FakeResolver struct {
	Resolved map[string]Input
	Missing  bool
	Err      error
}

func (r *FakeResolver) ResolveLockedInputs(ctx context.Context, binaryPath string, lockBytes []byte) (map[string]Input, bool, error) {
	if r.Err != nil {
		return nil, false, r.Err
	}
	resolved := make(map[string]Input, len(r.Resolved))
	for name, in := range r.Resolved {
		resolved[name] = in
	}
	return resolved, r.Missing, nil
}
