package reference

import (
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Revisions
// ---------------------------------------------------------------------------

// Revision is a point on the global validation clock. A reference that
// recorded revision N for its cached value is still valid as long as its
// tag reports that nothing it depends on changed after N.
type Revision uint64

const (
	// Constant is the revision reported by tags that never change.
	Constant Revision = 0

	// Initial is the first revision handed out by the clock.
	Initial Revision = 1
)

var clock atomic.Uint64

// Current returns the current revision of the global clock.
func Current() Revision {
	return Revision(clock.Load()) + Initial
}

// Bump advances the global clock and returns the new revision.
func Bump() Revision {
	return Revision(clock.Add(1)) + Initial
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// Tag reports when the value behind a reference last changed.
type Tag interface {
	// Value returns the revision at which the tagged value last changed.
	Value() Revision

	// Validate reports whether a value computed at snapshot is still current.
	Validate(snapshot Revision) bool
}

type constantTag struct{}

func (constantTag) Value() Revision        { return Constant }
func (constantTag) Validate(Revision) bool { return true }

type volatileTag struct{}

func (volatileTag) Value() Revision        { return Current() }
func (volatileTag) Validate(Revision) bool { return false }

var (
	// ConstantTag never invalidates.
	ConstantTag Tag = constantTag{}

	// VolatileTag always invalidates, forcing a recompute on every read.
	VolatileTag Tag = volatileTag{}
)

// IsConst reports whether t can never invalidate.
func IsConst(t Tag) bool {
	_, ok := t.(constantTag)
	return ok
}

// DirtyableTag is a tag that changes when Dirty is called.
type DirtyableTag struct {
	revision Revision
}

// NewDirtyableTag creates a tag valid as of the current revision.
func NewDirtyableTag() *DirtyableTag {
	return &DirtyableTag{revision: Current()}
}

func (t *DirtyableTag) Value() Revision {
	return t.revision
}

func (t *DirtyableTag) Validate(snapshot Revision) bool {
	return snapshot >= t.revision
}

// Dirty marks the tagged value as changed.
func (t *DirtyableTag) Dirty() {
	t.revision = Bump()
}

type combinedTag []Tag

func (c combinedTag) Value() Revision {
	var latest Revision
	for _, t := range c {
		if v := t.Value(); v > latest {
			latest = v
		}
	}
	return latest
}

func (c combinedTag) Validate(snapshot Revision) bool {
	for _, t := range c {
		if !t.Validate(snapshot) {
			return false
		}
	}
	return true
}

// Combine returns a tag that invalidates whenever any of tags does.
// Constant members are dropped; a combination with no remaining members
// is constant.
func Combine(tags ...Tag) Tag {
	var live combinedTag
	for _, t := range tags {
		if t == nil || IsConst(t) {
			continue
		}
		if _, ok := t.(volatileTag); ok {
			return VolatileTag
		}
		live = append(live, t)
	}
	switch len(live) {
	case 0:
		return ConstantTag
	case 1:
		return live[0]
	default:
		return live
	}
}

// CombineReferences combines the tags of refs. Nil references are skipped.
func CombineReferences(refs []Reference) Tag {
	tags := make([]Tag, 0, len(refs))
	for _, r := range refs {
		if r != nil {
			tags = append(tags, r.Tag())
		}
	}
	return Combine(tags...)
}
