package vcs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ObjectKind discriminates the exported object envelope.
type ObjectKind string

const (
	ObjectBlob   ObjectKind = "blob"
	ObjectTree   ObjectKind = "tree"
	ObjectCommit ObjectKind = "commit"
)

// Object is one exported record, keyed by kind and hash.
type Object struct {
	Type ObjectKind `json:"type"`
	Hash string     `json:"hash"`
	Data []byte     `json:"data"`
}

// ExportGitObjects serializes every object reachable from HEAD as
// {type, hash, data}, newline-delimited JSON compressed with zstd, for
// external publishing (e.g. pushToGitHub).
func (s *Store) ExportGitObjects() ([]byte, error) {
	s.mu.RLock()
	commits := s.AllCommits()
	seenTree := make(map[string]bool)
	seenBlob := make(map[string]bool)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, c := range commits {
		if err := enc.Encode(Object{Type: ObjectCommit, Hash: c.Hash, Data: mustJSON(c)}); err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("encode commit %s: %w", c.Hash, err)
		}
		tree, ok := s.trees[c.TreeHash]
		if !ok || seenTree[tree.Hash] {
			continue
		}
		seenTree[tree.Hash] = true
		if err := enc.Encode(Object{Type: ObjectTree, Hash: tree.Hash, Data: mustJSON(tree)}); err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("encode tree %s: %w", tree.Hash, err)
		}
		for _, e := range tree.Entries {
			if seenBlob[e.BlobHash] {
				continue
			}
			seenBlob[e.BlobHash] = true
			blob, ok := s.blobs[e.BlobHash]
			if !ok {
				continue
			}
			if err := enc.Encode(Object{Type: ObjectBlob, Hash: blob.Hash, Data: blob.Data}); err != nil {
				s.mu.RUnlock()
				return nil, fmt.Errorf("encode blob %s: %w", blob.Hash, err)
			}
		}
	}
	s.mu.RUnlock()

	zw, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("new zstd writer: %w", err)
	}
	defer zw.Close()
	return zw.EncodeAll(buf.Bytes(), nil), nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// HasCommits reports whether any commit exists.
func (s *Store) HasCommits() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head != ""
}
