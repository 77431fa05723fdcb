// Package watcher delivers file-system change notifications for watched
// directory trees. A Registry owns every watch it creates; closing it releases
// them all.
package watcher

import (
	"errors"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Errors returned by Registry operations.
var (
	ErrRegistryClosed  = errors.New("watcher registry is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Kind is the kind of change an Event reports.
type Kind string

// Event kinds.
const (
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
)

// Event is one change below a watched root.
type Event struct {
	// Path is the absolute path of the changed file or directory.
	Path string `json:"path"       yaml:"path"`
	// Kind is the change kind.
	Kind Kind `json:"event_type" yaml:"event_type"`
	// Root is the watched root the event was delivered for.
	Root string `json:"root"       yaml:"root"`
	// Time is when the event was received.
	Time time.Time `json:"time" yaml:"time"`
}

// kindOf maps an fsnotify operation to an event kind. A rename is reported on
// the old name, which no longer exists, so it counts as a removal.
func kindOf(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindRemove, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return KindModify, true
	default:
		return "", false
	}
}
