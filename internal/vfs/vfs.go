// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs implements the in-memory, versioned virtual file system that
// feeds the analysis host. It owns the mapping between editor URIs, on-disk
// virtual paths, and the dense FileId the rest of the server uses to refer
// to a document, and it accumulates edits into a ChangeSet the event loop
// applies to the analysis host once per commit.
package vfs

import (
	"fmt"
	"sync"

	"github.com/EricCrosson/nil/internal/protocol"
	"golang.org/x/xerrors"
)

// FileId is an opaque, dense identifier minted by the VFS. It is stable for
// the lifetime of the file's entry.
type FileId uint32

// FlakeInfo records the root flake file and the resolved store paths of its
// locked inputs, as discovered by the flake bootstrap (spec §4.5).
type FlakeInfo struct {
	RootFile         FileId
	InputStorePaths  map[string]string // input name -> nix store path
}

type fileEntry struct {
	uri       protocol.DocumentURI
	path      string // virtual path, "" if the file was only ever seen via URI
	content   string
	lineIndex []int // byte offset of the start of each line
}

// Change is one (FileId, new content) pair in a ChangeSet.
type Change struct {
	File    FileId
	Content string
}

// ChangeSet is an ordered batch of edits awaiting application to the
// analysis host. It is produced by TakeChange and consumed atomically.
type ChangeSet struct {
	Changes []Change
}

// VFS is guarded by a single RWMutex: readers (worker handlers building a
// Snapshot) take RLock, the event loop and the flake bootstrap task take
// Lock. Per spec invariant 3, this lock and the analysis host's internal
// lock are never held by the same goroutine at once.
type VFS struct {
	mu sync.RWMutex

	byURI   map[protocol.DocumentURI]FileId
	byPath  map[string]FileId
	entries map[FileId]*fileEntry
	nextID  FileId

	pending []Change

	flakeInfo *FlakeInfo
}

func New() *VFS {
	return &VFS{
		byURI:   make(map[protocol.DocumentURI]FileId),
		byPath:  make(map[string]FileId),
		entries: make(map[FileId]*fileEntry),
	}
}

func lineIndex(content string) []int {
	idx := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// SetURIContent interns uri if new and replaces its content, recording the
// change. It returns the file's stable id.
func (v *VFS) SetURIContent(uri protocol.DocumentURI, text string) FileId {
	v.mu.Lock()
	defer v.mu.Unlock()

	id, ok := v.byURI[uri]
	if !ok {
		id = v.nextID
		v.nextID++
		v.byURI[uri] = id
		v.entries[id] = &fileEntry{uri: uri}
	}
	v.setContentLocked(id, text)
	return id
}

// SetPathContent interns a virtual path (used for files read off disk, not
// opened by the client, e.g. flake.nix before it is opened) and replaces its
// content, recording the change.
func (v *VFS) SetPathContent(path string, text string) FileId {
	v.mu.Lock()
	defer v.mu.Unlock()

	id, ok := v.byPath[path]
	if !ok {
		id = v.nextID
		v.nextID++
		v.byPath[path] = id
		v.entries[id] = &fileEntry{path: path}
	}
	v.setContentLocked(id, text)
	return id
}

func (v *VFS) setContentLocked(id FileId, text string) {
	e := v.entries[id]
	e.content = text
	e.lineIndex = lineIndex(text)
	v.pending = append(v.pending, Change{File: id, Content: text})
}

// ErrNotFound is returned by FileForURI / FileForPath when the file is not
// (yet) tracked by the VFS.
var ErrNotFound = xerrors.New("file not found")

func (v *VFS) FileForURI(uri protocol.DocumentURI) (FileId, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.byURI[uri]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (v *VFS) FileForPath(path string) (FileId, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.byPath[path]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// URIForFile returns the URI of an existing file. It is a bug to call it
// with an id the VFS never minted.
func (v *VFS) URIForFile(id FileId) protocol.DocumentURI {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[id]
	if !ok {
		panic(fmt.Sprintf("vfs: URIForFile called with unknown FileId %d", id))
	}
	return e.uri
}

// Content returns the current content of id, used by read-only consumers
// (diagnostics handlers, range conversion) holding a Snapshot.
func (v *VFS) Content(id FileId) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	return e.content, nil
}

// ErrRangeOutOfBounds is returned by ChangeFileContent when a supplied byte
// range does not fit inside the file's current content. Per spec §4.1 this
// is a non-fatal, per-edit failure.
var ErrRangeOutOfBounds = xerrors.New("range out of bounds")

// ChangeFileContent applies an incremental edit. A nil byteRange replaces
// the whole document; otherwise only the half-open [start,end) byte span is
// replaced. The range must lie within the current content or the edit is
// rejected wholesale (the caller is expected to skip it and continue with
// later edits, per spec §4.1/§7).
func (v *VFS) ChangeFileContent(id FileId, byteRange *[2]int, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[id]
	if !ok {
		return ErrNotFound
	}
	if byteRange == nil {
		v.setContentLocked(id, text)
		return nil
	}
	start, end := byteRange[0], byteRange[1]
	if start < 0 || end < start || end > len(e.content) {
		return ErrRangeOutOfBounds
	}
	next := e.content[:start] + text + e.content[end:]
	v.setContentLocked(id, next)
	return nil
}

// ByteOffset converts a Position (0-based line/character, UTF-8 bytes per
// character — full UTF-16 position fidelity is a concrete-handler concern
// out of scope here, see spec §1) to a byte offset within the file's
// current content.
func (v *VFS) ByteOffset(id FileId, pos protocol.Position) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[id]
	if !ok {
		return 0, ErrNotFound
	}
	line := int(pos.Line)
	if line < 0 || line >= len(e.lineIndex) {
		return 0, ErrRangeOutOfBounds
	}
	lineStart := e.lineIndex[line]
	lineEnd := len(e.content)
	if line+1 < len(e.lineIndex) {
		lineEnd = e.lineIndex[line+1]
	}
	off := lineStart + int(pos.Character)
	if off < lineStart || off > lineEnd {
		return 0, ErrRangeOutOfBounds
	}
	return off, nil
}

// ByteRange converts a protocol.Range to a half-open byte span.
func (v *VFS) ByteRange(id FileId, r protocol.Range) (*[2]int, error) {
	start, err := v.ByteOffset(id, r.Start)
	if err != nil {
		return nil, err
	}
	end, err := v.ByteOffset(id, r.End)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, ErrRangeOutOfBounds
	}
	return &[2]int{start, end}, nil
}

// TakeChange returns and clears the pending ChangeSet. Must be called only
// by the event loop (spec §4.1).
func (v *VFS) TakeChange() ChangeSet {
	v.mu.Lock()
	defer v.mu.Unlock()
	cs := ChangeSet{Changes: v.pending}
	v.pending = nil
	return cs
}

// SetFlakeInfo updates the flake side table. nil clears it.
func (v *VFS) SetFlakeInfo(info *FlakeInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flakeInfo = info
}

func (v *VFS) FlakeInfo() *FlakeInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.flakeInfo
}
