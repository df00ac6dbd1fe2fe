// Package reference implements the lazily revalidated value cells the
// stencil VM evaluates expressions against.
//
// A Reference has a stable identity and a Tag. Reading its Value may
// recompute, but only when the tag says something it depends on changed
// since the last read. Get derives a child reference for a property and
// never fails: a missing property is a reference whose value is nil.
//
// References are not safe for concurrent use. The VM is single threaded
// and only requires that reads are idempotent from the reader's view.
package reference

// Reference is a possibly changing value.
type Reference interface {
	// Value returns the current value, revalidating cached state first.
	Value() any

	// Tag reports when Value last changed.
	Tag() Tag

	// Get derives the reference for the named property of this value.
	// Repeated calls with the same key return the same reference.
	Get(key string) Reference
}

// ---------------------------------------------------------------------------
// Shared plumbing
// ---------------------------------------------------------------------------

// cache memoizes a computed value against a tag snapshot.
type cache struct {
	valid    bool
	snapshot Revision
	value    any
}

func (c *cache) get(tag Tag, compute func() any) any {
	if !c.valid || !tag.Validate(c.snapshot) {
		snapshot := tag.Value()
		c.value = compute()
		c.snapshot = snapshot
		c.valid = true
	}
	return c.value
}

// children caches derived property references by key so that derivation
// is stable in identity.
type children map[string]*PropertyReference

func (c *children) child(parent Reference, key string) *PropertyReference {
	if *c == nil {
		*c = make(children)
	}
	if ref, ok := (*c)[key]; ok {
		return ref
	}
	ref := &PropertyReference{parent: parent, key: key}
	(*c)[key] = ref
	return ref
}

// ---------------------------------------------------------------------------
// Constant references
// ---------------------------------------------------------------------------

// ConstReference wraps a value that never changes.
type ConstReference struct {
	value any
	kids  children
}

// Const returns a reference to v. Booleans and nil map to the shared
// singletons.
func Const(v any) Reference {
	switch x := v.(type) {
	case nil:
		return Undefined
	case bool:
		return Bool(x)
	}
	return &ConstReference{value: v}
}

func (r *ConstReference) Value() any { return r.value }
func (r *ConstReference) Tag() Tag   { return ConstantTag }

func (r *ConstReference) Get(key string) Reference {
	if r.value == nil {
		return Undefined
	}
	return r.kids.child(r, key)
}

var (
	// Undefined resolves to nil. Every property of it is Undefined.
	Undefined Reference = &ConstReference{}

	// True and False are shared so boolean results never allocate.
	True  Reference = &ConstReference{value: true}
	False Reference = &ConstReference{value: false}
)

// Bool returns True or False.
func Bool(b bool) Reference {
	if b {
		return True
	}
	return False
}

// IsUndefined reports whether r resolves to absence.
func IsUndefined(r Reference) bool {
	return r == nil || r.Value() == nil
}

// ---------------------------------------------------------------------------
// Cell: an updatable root
// ---------------------------------------------------------------------------

// Cell is a root reference whose value is replaced with Set. Children
// derived from a cell revalidate against its tag.
type Cell struct {
	value any
	tag   *DirtyableTag
	kids  children
}

// NewCell creates a cell holding v.
func NewCell(v any) *Cell {
	return &Cell{value: v, tag: NewDirtyableTag()}
}

func (c *Cell) Value() any { return c.value }
func (c *Cell) Tag() Tag   { return c.tag }

func (c *Cell) Get(key string) Reference {
	return c.kids.child(c, key)
}

// Set replaces the value and invalidates every reader.
func (c *Cell) Set(v any) {
	c.value = v
	c.tag.Dirty()
}

// Dirty invalidates readers after the held value was mutated in place.
func (c *Cell) Dirty() {
	c.tag.Dirty()
}

// ---------------------------------------------------------------------------
// Derived references
// ---------------------------------------------------------------------------

// PropertyReference is the lazily evaluated property of a parent reference.
type PropertyReference struct {
	parent Reference
	key    string
	cache  cache
	kids   children
}

// Parent returns the reference this property was derived from.
func (r *PropertyReference) Parent() Reference { return r.parent }

// Key returns the property name.
func (r *PropertyReference) Key() string { return r.key }

func (r *PropertyReference) Tag() Tag { return r.parent.Tag() }

func (r *PropertyReference) Value() any {
	return r.cache.get(r.Tag(), func() any {
		return Property(r.parent.Value(), r.key)
	})
}

func (r *PropertyReference) Get(key string) Reference {
	return r.kids.child(r, key)
}

// ComputedReference caches the result of fn until one of its dependencies
// changes.
type ComputedReference struct {
	fn    func() any
	tag   Tag
	cache cache
	kids  children
}

// Compute returns a reference to fn's result. With no dependencies the
// result is computed once.
func Compute(fn func() any, deps ...Reference) *ComputedReference {
	return &ComputedReference{fn: fn, tag: CombineReferences(deps)}
}

func (r *ComputedReference) Tag() Tag { return r.tag }

func (r *ComputedReference) Value() any {
	return r.cache.get(r.tag, r.fn)
}

func (r *ComputedReference) Get(key string) Reference {
	return r.kids.child(r, key)
}
