package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/vcs"
)

// FileManager is the File Manager (C3): maintains generatedFilesMap via the
// State Store and commits edits to the embedded Version-Control Store
// (C4). Structured like a thin service wrapping two stores, the shape the
// teacher uses for its own store-backed services; there is no direct
// teacher analogue for the VCS-commit-on-save behavior since the teacher
// shells out to git instead (internal/service/checkpoint.go).
type FileManager[T Cloneable[T]] struct {
	states *StateStore[T]
	store  *vcs.Store
	now    func() time.Time

	getFiles func(T) map[string]agentsession.FileRecord
	setFiles func(*T, map[string]agentsession.FileRecord)
}

// NewFileManager returns a FileManager reading and writing generatedFilesMap
// through getFiles/setFiles, which the caller supplies because
// generatedFilesMap lives inside whichever variant state (AppState or
// WorkflowState) T is.
func NewFileManager[T Cloneable[T]](
	states *StateStore[T],
	store *vcs.Store,
	getFiles func(T) map[string]agentsession.FileRecord,
	setFiles func(*T, map[string]agentsession.FileRecord),
) *FileManager[T] {
	return &FileManager[T]{
		states:   states,
		store:    store,
		now:      time.Now,
		getFiles: getFiles,
		setFiles: setFiles,
	}
}

// SaveGeneratedFile writes one record into generatedFilesMap and commits it
// as a single-file commit to C4.
func (f *FileManager[T]) SaveGeneratedFile(ctx context.Context, rec agentsession.FileRecord, commitMessage string) (agentsession.FileRecord, error) {
	_, err := f.SaveGeneratedFiles(ctx, []agentsession.FileRecord{rec}, commitMessage)
	return rec, err
}

// SaveGeneratedFiles atomically updates the map and creates one commit
// containing every file. The only real failure mode is a missing VCS
// store, checked up front before anything is mutated; vcs.Store.Commit
// has no error return (an attached durable mirror only logs its write
// failures), so there is no
// partial-failure case downstream of that guard for a rollback to
// undo — once the map update below runs, the commit always succeeds.
func (f *FileManager[T]) SaveGeneratedFiles(ctx context.Context, files []agentsession.FileRecord, commitMessage string) ([]agentsession.FileRecord, error) {
	if f.store == nil {
		return nil, fmt.Errorf("file manager: no VCS store attached, cannot commit %q", commitMessage)
	}

	contents := make(map[string]string, len(files))
	f.states.UpdateField(ctx, func(state *T) {
		existing := f.getFiles(*state)
		m := make(map[string]agentsession.FileRecord, len(existing)+len(files))
		for k, v := range existing {
			m[k] = v
		}
		for _, rec := range files {
			m[rec.FilePath] = rec
			contents[rec.FilePath] = rec.FileContents
		}
		f.setFiles(state, m)
	})

	f.store.Commit(ctx, contents, commitMessage, f.now())
	return files, nil
}

// GetGeneratedFile returns one record by path.
func (f *FileManager[T]) GetGeneratedFile(path string) (agentsession.FileRecord, bool) {
	m := f.getFiles(f.states.Get())
	rec, ok := m[path]
	return rec, ok
}

// GetGeneratedFiles returns every record in generatedFilesMap.
func (f *FileManager[T]) GetGeneratedFiles() map[string]agentsession.FileRecord {
	return f.getFiles(f.states.Get())
}

// DeleteFiles removes paths from generatedFilesMap and commits the
// resulting file set.
func (f *FileManager[T]) DeleteFiles(ctx context.Context, paths []string, commitMessage string) error {
	f.states.UpdateField(ctx, func(state *T) {
		m := f.getFiles(*state)
		for _, p := range paths {
			delete(m, p)
		}
		f.setFiles(state, m)
	})
	f.store.DeletePaths(ctx, paths, commitMessage, f.now())
	return nil
}
