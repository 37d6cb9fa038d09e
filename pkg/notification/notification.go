package notification

import (
	"time"
)

type Action int

const (
	ActionLink Action = iota + 1
	ActionSkip
)

type Sender interface {
	CanSend() bool
	Send(title string, description string, runTime time.Duration, fields []Field, dryRun bool) error
	BuildField(action Action, options BuildOptions) Field
	Name() string
}

type Field struct {
	Name  string
	Value string
}

type BuildOptions struct {
	// Source is the representative candidate path that was relinked.
	Source string

	// Target is the keep-set path its inode now shares.
	Target string

	// Paths is how many directory entries were migrated.
	Paths int

	// ReclaimedBytes is the allocated size of the consumed inode.
	ReclaimedBytes uint64
}
