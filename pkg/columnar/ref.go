package columnar

import "sync/atomic"

// Ref is a reference-counted handle to a column with copy-on-write semantics.
//
// Every block that holds a column holds its own Ref. Handles created with
// Share point at the same column and bump a shared count; Mutate clones the
// column first whenever another handle is still alive, so a column visible
// through two handles is never modified in place.
//
// Dropping a handle without calling Release is safe: the count stays high
// and the next Mutate on a sibling handle makes a copy it did not strictly
// need.
type Ref struct {
	col  Column
	refs *atomic.Int64
}

// NewRef wraps col in an exclusive handle
func NewRef(col Column) *Ref {
	refs := new(atomic.Int64)
	refs.Store(1)
	return &Ref{col: col, refs: refs}
}

// Column returns the column for reading. Callers must not mutate it;
// use Mutate instead.
func (r *Ref) Column() Column {
	if r == nil {
		return nil
	}
	return r.col
}

// Share returns a new handle to the same column. Sharing an unset or
// released handle returns nil.
func (r *Ref) Share() *Ref {
	if r == nil || r.refs == nil {
		return nil
	}
	r.refs.Add(1)
	return &Ref{col: r.col, refs: r.refs}
}

// Release drops this handle. The Ref must not be used afterwards.
func (r *Ref) Release() {
	if r == nil || r.refs == nil {
		return
	}
	r.refs.Add(-1)
	r.col = nil
	r.refs = nil
}

// Shared reports whether other live handles point at the same column
func (r *Ref) Shared() bool {
	return r != nil && r.refs != nil && r.refs.Load() > 1
}

// RefCount returns the number of live handles to the column
func (r *Ref) RefCount() int64 {
	if r == nil || r.refs == nil {
		return 0
	}
	return r.refs.Load()
}

// Mutate returns a column this handle exclusively owns. A shared column is
// cloned and the handle is detached from the other owners.
func (r *Ref) Mutate() Column {
	if r == nil {
		return nil
	}
	if !r.Shared() {
		return r.col
	}
	clone := r.col.Clone()
	r.refs.Add(-1)
	refs := new(atomic.Int64)
	refs.Store(1)
	r.col = clone
	r.refs = refs
	return clone
}
