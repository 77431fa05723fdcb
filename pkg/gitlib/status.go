package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// StatusFlags is the decoded working-tree status of a single path. Each flag is
// the OR of its index and working-directory bits.
type StatusFlags struct {
	New      bool
	Modified bool
	Deleted  bool
	Renamed  bool
	Ignored  bool
}

// PathStatus pairs a repository-relative path with its status flags.
type PathStatus struct {
	Path  string
	Flags StatusFlags
}

// StatusQuery selects what Status reports.
type StatusQuery struct {
	IncludeIgnored bool
}

// Status scans the index and working tree. Untracked files are included and
// untracked directories are recursed into.
func (r *Repository) Status(query StatusQuery) ([]PathStatus, error) {
	flags := git2go.StatusOptIncludeUntracked | git2go.StatusOptRecurseUntrackedDirs
	if query.IncludeIgnored {
		flags |= git2go.StatusOptIncludeIgnored
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	list, err := r.repo.StatusList(&git2go.StatusOptions{
		Show:  git2go.StatusShowIndexAndWorkdir,
		Flags: flags,
	})
	if err != nil {
		return nil, fmt.Errorf("status list %s: %w", r.path, err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return nil, fmt.Errorf("status entry count: %w", err)
	}

	result := make([]PathStatus, 0, count)

	for i := range count {
		entry, entryErr := list.ByIndex(i)
		if entryErr != nil {
			return nil, fmt.Errorf("status entry %d: %w", i, entryErr)
		}

		path := statusPath(entry)
		if path == "" {
			continue
		}

		result = append(result, PathStatus{Path: path, Flags: decodeStatus(entry.Status)})
	}

	return result, nil
}

// statusPath prefers the working-directory side, falling back to the index side.
func statusPath(entry git2go.StatusEntry) string {
	if p := entry.IndexToWorkdir.NewFile.Path; p != "" {
		return p
	}

	if p := entry.IndexToWorkdir.OldFile.Path; p != "" {
		return p
	}

	if p := entry.HeadToIndex.NewFile.Path; p != "" {
		return p
	}

	return entry.HeadToIndex.OldFile.Path
}

func decodeStatus(s git2go.Status) StatusFlags {
	return StatusFlags{
		New:      s&(git2go.StatusWtNew|git2go.StatusIndexNew) != 0,
		Modified: s&(git2go.StatusWtModified|git2go.StatusIndexModified) != 0,
		Deleted:  s&(git2go.StatusWtDeleted|git2go.StatusIndexDeleted) != 0,
		Renamed:  s&(git2go.StatusWtRenamed|git2go.StatusIndexRenamed) != 0,
		Ignored:  s&git2go.StatusIgnored != 0,
	}
}
