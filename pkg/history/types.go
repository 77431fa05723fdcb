// Package history answers which commits touched a file and with what line-level
// effect. A Walker enumerates the commit graph most recent first, an Attributor
// reduces each commit to per-file line counts against its first parent, and a
// Resolver combines the two into last-commit and full-history queries.
package history

import (
	"errors"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/gitlib"
)

// ErrHistoryNotFound is returned when no reachable commit touches a path.
var ErrHistoryNotFound = errors.New("no history for path")

// UntrackedMessage is the message of metadata synthesized for untracked files.
const UntrackedMessage = "Untracked file"

// CommitInfo is one entry of a file's change history. Timestamp is the commit
// time in seconds.
type CommitInfo struct {
	Hash        string   `json:"hash"                  yaml:"hash"`
	Message     string   `json:"message"               yaml:"message"`
	AuthorName  string   `json:"author_name"           yaml:"author_name"`
	AuthorEmail string   `json:"author_email"          yaml:"author_email"`
	Timestamp   int64    `json:"timestamp"             yaml:"timestamp"`
	Parents     []string `json:"parents,omitempty"     yaml:"parents,omitempty"`
	Added       int      `json:"added"                 yaml:"added"`
	Deleted     int      `json:"deleted"               yaml:"deleted"`
}

// FileChange is the line-level effect of one commit on one file. OldPath and
// NewPath differ only for renames; one of them is empty for additions and
// deletions.
type FileChange struct {
	OldPath string
	NewPath string
	Added   int
	Deleted int
}

// Touches reports whether the change affects path with at least one changed
// line. Binary and pure-rename deltas carry no lines and never match.
func (c FileChange) Touches(path string) bool {
	if c.Added == 0 && c.Deleted == 0 {
		return false
	}

	return c.OldPath == path || c.NewPath == path
}

// FileMetadata is the last-modification record of a file. LastCommit is empty
// for untracked files.
type FileMetadata struct {
	Path        string `json:"path"                  yaml:"path"`
	LastCommit  string `json:"last_commit,omitempty" yaml:"last_commit,omitempty"`
	Message     string `json:"message"               yaml:"message"`
	AuthorName  string `json:"author_name"           yaml:"author_name"`
	AuthorEmail string `json:"author_email"          yaml:"author_email"`
	Timestamp   int64  `json:"timestamp"             yaml:"timestamp"`
	Added       int    `json:"added"                 yaml:"added"`
	Deleted     int    `json:"deleted"               yaml:"deleted"`
}

// Untracked reports whether the record was synthesized for an untracked file.
func (m FileMetadata) Untracked() bool {
	return m.LastCommit == ""
}

// UntrackedMetadata synthesizes the record of a file no commit has touched.
func UntrackedMetadata(path string) FileMetadata {
	return FileMetadata{Path: path, Message: UntrackedMessage}
}

func newCommitInfo(commit *gitlib.Commit, change FileChange) CommitInfo {
	author := commit.Author()
	parents := commit.ParentHashes()

	info := CommitInfo{
		Hash:        commit.Hash().String(),
		Message:     commit.Message(),
		AuthorName:  author.Name,
		AuthorEmail: author.Email,
		Timestamp:   commit.Committer().Unix(),
		Added:       change.Added,
		Deleted:     change.Deleted,
	}

	if len(parents) > 0 {
		info.Parents = make([]string, 0, len(parents))
		for _, p := range parents {
			info.Parents = append(info.Parents, p.String())
		}
	}

	return info
}

func newFileMetadata(path string, commit *gitlib.Commit, change FileChange) FileMetadata {
	author := commit.Author()

	return FileMetadata{
		Path:        path,
		LastCommit:  commit.Hash().String(),
		Message:     commit.Message(),
		AuthorName:  author.Name,
		AuthorEmail: author.Email,
		Timestamp:   commit.Committer().Unix(),
		Added:       change.Added,
		Deleted:     change.Deleted,
	}
}
