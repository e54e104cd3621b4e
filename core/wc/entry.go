package wc

import (
	"context"
	"errors"
	"fmt"

	"merge-engine/core/repos"
)

var (
	// ErrNotFound is returned when neither a record nor a disk item exists at a path.
	ErrNotFound = errors.New("path not found in working copy")
	// ErrLockContention is returned when another session holds the working-copy lock.
	ErrLockContention = errors.New("working copy is locked by another session")
	// ErrNotWorkingCopy is returned when a directory has no admin area.
	ErrNotWorkingCopy = errors.New("not a working copy")
)

// Status is the local schedule or condition of a node.
type Status int

const (
	// StatusNormal is a versioned node with no scheduled change.
	StatusNormal Status = iota
	// StatusAdded is scheduled for addition.
	StatusAdded
	// StatusDeleted is scheduled for deletion.
	StatusDeleted
	// StatusReplaced is scheduled for deletion and re-addition.
	StatusReplaced
	// StatusMissing is versioned but absent from disk.
	StatusMissing
	// StatusUnversioned is on disk but not versioned.
	StatusUnversioned
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusReplaced:
		return "replaced"
	case StatusMissing:
		return "missing"
	case StatusUnversioned:
		return "unversioned"
	}
	return "normal"
}

// Code returns the one letter status column for the schedule.
func (s Status) Code() byte {
	switch s {
	case StatusAdded:
		return 'A'
	case StatusDeleted:
		return 'D'
	case StatusReplaced:
		return 'R'
	case StatusMissing:
		return '!'
	case StatusUnversioned:
		return '?'
	}
	return ' '
}

func parseSchedule(s string) (Status, error) {
	switch s {
	case "", "normal":
		return StatusNormal, nil
	case "added":
		return StatusAdded, nil
	case "deleted":
		return StatusDeleted, nil
	case "replaced":
		return StatusReplaced, nil
	}
	return StatusNormal, fmt.Errorf("unknown schedule %q", s)
}

// Versioned reports whether the status belongs to a versioned node.
func (s Status) Versioned() bool {
	return s != StatusUnversioned
}

// Entry is a node of the working copy.
type Entry struct {
	Path    string
	Kind    repos.Kind
	Content []byte
	Props   repos.Props
	Status  Status
	// URL is the repository path the node tracks.
	URL string
	// Revision is the base revision of the node.
	Revision int64
	// CopyFrom records the source of a node added with history.
	CopyFrom *repos.Location
	// TextConflicted and PropConflicted stay set until resolved.
	TextConflicted bool
	PropConflicted bool
	// Children holds the sorted names of a directory's items, versioned or not.
	Children []string
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	out := *e
	out.Content = append([]byte(nil), e.Content...)
	out.Props = e.Props.Clone()
	out.Children = append([]string(nil), e.Children...)
	if e.CopyFrom != nil {
		cf := *e.CopyFrom
		out.CopyFrom = &cf
	}
	return &out
}

// WorkingCopy is the local tree a merge reads and writes.
type WorkingCopy interface {
	// ReadLocal returns the node at path, or ErrNotFound.
	ReadLocal(ctx context.Context, path string) (*Entry, error)
	// WriteLocal stores the node, its content and its record.
	WriteLocal(ctx context.Context, path string, e *Entry) error
	// RemoveLocal schedules the node and its descendants for deletion and removes them from disk.
	RemoveLocal(ctx context.Context, path string) error
	// WriteSidecar writes an unversioned file, appending when appendTo is set.
	WriteSidecar(ctx context.Context, path string, content []byte, appendTo bool) error
	// Versioned lists the versioned paths not scheduled for deletion, sorted.
	Versioned(ctx context.Context) ([]string, error)
	// Lock takes the session lock, or returns ErrLockContention.
	Lock(ctx context.Context) error
	// Unlock releases the session lock.
	Unlock(ctx context.Context) error
}
