package reference

import "strings"

// ConcatReference joins the string forms of its parts. The joined string
// is cached until any part's tag invalidates.
type ConcatReference struct {
	parts []Reference
	tag   Tag
	cache cache
	kids  children
}

// Concat creates a reference over parts in source order. Absent parts
// contribute nothing; zero parts yield the empty string.
func Concat(parts ...Reference) *ConcatReference {
	return &ConcatReference{parts: parts, tag: CombineReferences(parts)}
}

// Parts returns the input references in source order.
func (r *ConcatReference) Parts() []Reference { return r.parts }

func (r *ConcatReference) Tag() Tag { return r.tag }

func (r *ConcatReference) Value() any {
	return r.cache.get(r.tag, r.compute)
}

func (r *ConcatReference) compute() any {
	var sb strings.Builder
	for _, p := range r.parts {
		if p != nil {
			sb.WriteString(ToString(p.Value()))
		}
	}
	return sb.String()
}

func (r *ConcatReference) Get(key string) Reference {
	return r.kids.child(r, key)
}
