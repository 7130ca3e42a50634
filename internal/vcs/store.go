// Package vcs implements the Version-Control Store (C4): an append-only,
// in-process content-addressed object store of blobs, trees, and commits
// with a HEAD pointer. It is grounded on the teacher's shadow-git-commit
// concept in internal/service/checkpoint.go, but reimplemented entirely
// in-process rather than shelling out to the git binary, per spec.
package vcs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Strob0t/CodeForge/internal/port/database"
)

// Blob is one file's content, addressed by its content hash.
type Blob struct {
	Hash string
	Data []byte
}

// TreeEntry is one path -> blob mapping within a Tree.
type TreeEntry struct {
	Path     string
	BlobHash string
}

// Tree is a sorted, content-addressed snapshot of the full file set.
type Tree struct {
	Hash    string
	Entries []TreeEntry
}

// Commit is one append-only revision: a tree plus a message and parent
// link.
type Commit struct {
	Hash       string
	ParentHash string // empty for the initial commit
	TreeHash   string
	Message    string
	CreatedAt  time.Time
}

// Store is the C4 object store: blobs, trees, commits, and HEAD.
// Safe for concurrent use, though per §5 a session's operations are already
// serialized by its single-actor discipline; the mutex guards against
// incidental concurrent reads (e.g. exportGitObjects running during a
// commit).
type Store struct {
	mu      sync.RWMutex
	blobs   map[string]Blob
	trees   map[string]Tree
	commits map[string]Commit
	head    string // empty means no commits yet

	db        database.Store
	sessionID string
	log       *slog.Logger
}

// SetPersistence attaches a durable mirror: every subsequent Commit or
// DeletePaths writes its new objects and HEAD pointer through db,
// best-effort, the same fire-and-log-on-failure contract StateStore and
// ConversationStore use for their own durable mirrors. A Store with no
// persistence attached behaves exactly as before (pure in-memory).
func (s *Store) SetPersistence(db database.Store, sessionID string, log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
	s.sessionID = sessionID
	s.log = log
}

// Restore rebuilds the store's objects and HEAD pointer from durable rows,
// for a cold-start rehydration (§4.15). It does not re-persist anything —
// the rows already exist in the durable store that produced them.
func (s *Store) Restore(rows []database.VCSObjectRow, head string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		switch row.Kind {
		case "blob":
			s.blobs[row.Hash] = Blob{Hash: row.Hash, Data: row.Data}
		case "tree":
			var t Tree
			if err := json.Unmarshal(row.Data, &t); err != nil {
				return fmt.Errorf("vcs: restore tree %s: %w", row.Hash, err)
			}
			s.trees[row.Hash] = t
		case "commit":
			var c Commit
			if err := json.Unmarshal(row.Data, &c); err != nil {
				return fmt.Errorf("vcs: restore commit %s: %w", row.Hash, err)
			}
			s.commits[row.Hash] = c
		}
	}
	s.head = head
	return nil
}

func (s *Store) persist(ctx context.Context, newBlobs []Blob, tree Tree, commit Commit) {
	if s.db == nil {
		return
	}
	for _, b := range newBlobs {
		if err := s.db.SaveVCSObject(ctx, s.sessionID, "blob", b.Hash, b.Data); err != nil {
			s.log.Error("vcs: persist blob failed", "session_id", s.sessionID, "error", err)
		}
	}
	if err := s.db.SaveVCSObject(ctx, s.sessionID, "tree", tree.Hash, mustJSON(tree)); err != nil {
		s.log.Error("vcs: persist tree failed", "session_id", s.sessionID, "error", err)
	}
	if err := s.db.SaveVCSObject(ctx, s.sessionID, "commit", commit.Hash, mustJSON(commit)); err != nil {
		s.log.Error("vcs: persist commit failed", "session_id", s.sessionID, "error", err)
	}
	if err := s.db.SaveHead(ctx, s.sessionID, commit.Hash); err != nil {
		s.log.Error("vcs: persist head failed", "session_id", s.sessionID, "error", err)
	}
}

// New returns an initialized, empty Store. Init is idempotent: calling New
// again (e.g. on rehydration with no prior commits) yields the same empty
// state.
func New() *Store {
	return &Store{
		blobs:   make(map[string]Blob),
		trees:   make(map[string]Tree),
		commits: make(map[string]Commit),
	}
}

func hashBytes(b []byte) string {
	sum := blake3.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

func hashTreeEntries(entries []TreeEntry) string {
	h := blake3.New()
	for _, e := range entries {
		_, _ = h.Write([]byte(e.Path))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(e.BlobHash))
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum)
}

// GetHead returns the current HEAD commit, or false if no commit has ever
// been made.
func (s *Store) GetHead() (Commit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.head == "" {
		return Commit{}, false
	}
	return s.commits[s.head], true
}

// HeadTree returns the tree entries reachable from HEAD, or nil if there is
// no commit yet.
func (s *Store) HeadTree() []TreeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headTreeLocked()
}

func (s *Store) headTreeLocked() []TreeEntry {
	if s.head == "" {
		return nil
	}
	commit := s.commits[s.head]
	tree := s.trees[commit.TreeHash]
	out := make([]TreeEntry, len(tree.Entries))
	copy(out, tree.Entries)
	return out
}

// Commit diffs files against the tree reachable from HEAD, writes only
// changed blobs, builds a new tree, appends a commit, and advances HEAD.
// files maps path -> content. An empty diff (no path added, changed, or
// removed relative to HEAD) still produces a new commit with an unchanged
// tree hash, matching the idempotent-resubmit testable property (§8,
// scenario 6).
func (s *Store) Commit(ctx context.Context, files map[string]string, message string, now time.Time) Commit {
	s.mu.Lock()

	prevByPath := make(map[string]string, len(files))
	for _, e := range s.headTreeLocked() {
		prevByPath[e.Path] = e.BlobHash
	}
	var newBlobs []Blob
	for path, content := range files {
		data := []byte(content)
		hash := hashBytes(data)
		if _, exists := s.blobs[hash]; !exists {
			blob := Blob{Hash: hash, Data: data}
			s.blobs[hash] = blob
			newBlobs = append(newBlobs, blob)
		}
		prevByPath[path] = hash
	}

	entries := make([]TreeEntry, 0, len(prevByPath))
	for path, hash := range prevByPath {
		entries = append(entries, TreeEntry{Path: path, BlobHash: hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	treeHash := hashTreeEntries(entries)
	tree := Tree{Hash: treeHash, Entries: entries}
	if _, exists := s.trees[treeHash]; !exists {
		s.trees[treeHash] = tree
	}

	commitInput := treeHash + "\x00" + s.head + "\x00" + message
	commitHash := hashBytes([]byte(commitInput + now.Format(time.RFC3339Nano)))
	commit := Commit{
		Hash:       commitHash,
		ParentHash: s.head,
		TreeHash:   treeHash,
		Message:    message,
		CreatedAt:  now,
	}
	s.commits[commitHash] = commit
	s.head = commitHash
	s.mu.Unlock()

	s.persist(ctx, newBlobs, tree, commit)
	return commit
}

// DeletePaths removes paths from the HEAD tree and commits the result.
// Blobs are left in the object store (append-only); only the tree no
// longer references them.
func (s *Store) DeletePaths(ctx context.Context, paths []string, message string, now time.Time) Commit {
	remove := make(map[string]bool, len(paths))
	for _, p := range paths {
		remove[p] = true
	}

	s.mu.Lock()
	prev := s.headTreeLocked()
	s.mu.Unlock()

	remaining := make(map[string]string, len(prev))
	for _, e := range prev {
		if !remove[e.Path] {
			remaining[e.Path] = e.BlobHash
		}
	}

	s.mu.Lock()
	entries := make([]TreeEntry, 0, len(remaining))
	for path, hash := range remaining {
		entries = append(entries, TreeEntry{Path: path, BlobHash: hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	treeHash := hashTreeEntries(entries)
	tree := Tree{Hash: treeHash, Entries: entries}
	if _, exists := s.trees[treeHash]; !exists {
		s.trees[treeHash] = tree
	}
	commitInput := treeHash + "\x00" + s.head + "\x00" + message
	commitHash := hashBytes([]byte(commitInput + now.Format(time.RFC3339Nano)))
	commit := Commit{
		Hash:       commitHash,
		ParentHash: s.head,
		TreeHash:   treeHash,
		Message:    message,
		CreatedAt:  now,
	}
	s.commits[commitHash] = commit
	s.head = commitHash
	s.mu.Unlock()

	s.persist(ctx, nil, tree, commit)
	return commit
}

// Blob returns the blob for hash, if present.
func (s *Store) Blob(hash string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[hash]
	return b, ok
}

// Tree returns the tree for hash, if present.
func (s *Store) Tree(hash string) (Tree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trees[hash]
	return t, ok
}

// AllCommits returns every commit reachable from HEAD, oldest first.
func (s *Store) AllCommits() []Commit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Commit
	for h := s.head; h != ""; {
		c, ok := s.commits[h]
		if !ok {
			break
		}
		out = append(out, c)
		h = c.ParentHash
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
