package chain

import (
	"iter"
	"slices"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// FilterIter applies a ChainFilter to a stream of activity records. It
// yields the record at the filter position and then each verified ancestor,
// child first, and:
//   - ignores records that are not direct ancestors of the starting position;
//   - stops at the first gap or out-of-order record;
//   - yields no more than the take bound (it may yield fewer);
//   - stops after (and including) an until hash, if that hash is reached.
//
// The source must be sorted by action sequence from highest to lowest, at
// least over the prefix that holds the requested segment; anything after the
// first unsorted record is ignored. If the source never contains the filter
// position the iterator is empty.
//
// A FilterIter is single-pass. The source is ranged over only while the
// caller ranges over All, so abandoning the loop at any point ends the
// source's loop as well and nothing is left open.
type FilterIter struct {
	filter types.ChainFilter
	source iter.Seq[types.ActivityRecord]
	used   bool
	defect bool
}

// NewFilterIter returns an iterator over source honoring filter. Nothing is
// read from source until All is ranged over.
func NewFilterIter(filter types.ChainFilter, source iter.Seq[types.ActivityRecord]) *FilterIter {
	return &FilterIter{filter: filter, source: source}
}

// Collect runs a traversal to completion and returns the yielded records.
func Collect(filter types.ChainFilter, source iter.Seq[types.ActivityRecord]) []types.ActivityRecord {
	return slices.Collect(NewFilterIter(filter, source).All())
}

// All returns the ancestry segment. Only the first range over the returned
// sequence reads the source; later ranges yield nothing.
func (it *FilterIter) All() iter.Seq[types.ActivityRecord] {
	return func(yield func(types.ActivityRecord) bool) {
		if it.used {
			return
		}
		it.used = true

		w := newWalk(it.filter)
		defer func() { it.defect = w.defect }()

		for r := range it.source {
			out, ok := w.offer(r)
			if ok && !yield(out) {
				return
			}
			if w.end {
				return
			}
		}
		if out, ok := w.drain(); ok {
			yield(out)
		}
	}
}

// Defect reports whether the traversal ended because a non-genesis record
// declared no previous action. Such a traversal yields nothing further; the
// condition is never surfaced as an error.
func (it *FilterIter) Defect() bool {
	return it.defect
}

// walk is the traversal state. child is the last accepted record, held
// back until the next source record shows whether its parent follows.
type walk struct {
	position  types.Hash
	filters   types.ChainFilters
	remaining uint32

	child    types.ActivityRecord
	hasChild bool
	end      bool
	defect   bool
}

func newWalk(filter types.ChainFilter) *walk {
	remaining, _ := filter.Filters.TakeCount()
	return &walk{
		position:  filter.Position,
		filters:   filter.Filters,
		remaining: remaining,
	}
}

// offer feeds the next source record and returns the record to yield, if
// any. Records ahead of the filter position are skipped.
func (w *walk) offer(parent types.ActivityRecord) (types.ActivityRecord, bool) {
	var zero types.ActivityRecord
	if !w.hasChild {
		if parent.ActionAddress() == w.position {
			w.child, w.hasChild = parent, true
		}
		return zero, false
	}

	childSeq := w.child.ActionSeq()
	parentSeq := parent.ActionSeq()

	if childSeq < parentSeq {
		// Out of order: the sorted prefix ends here.
		return w.last()
	}
	if childSeq == parentSeq {
		// Fork sibling at the current depth.
		return zero, false
	}

	prev := w.child.PrevAction()
	if prev == nil {
		// Only the genesis action has no previous action, and genesis is
		// always at sequence zero. Nothing sensible can follow.
		w.defect = true
		w.end = true
		return zero, false
	}
	if parentSeq+1 != childSeq {
		// Gap in the chain.
		return w.last()
	}
	if *prev != parent.ActionAddress() {
		// Same depth as the parent but not referenced by the child.
		return zero, false
	}

	child := w.child
	w.child = parent
	return w.admit(child)
}

// drain returns the held record once the source is exhausted.
func (w *walk) drain() (types.ActivityRecord, bool) {
	if w.end || !w.hasChild {
		return types.ActivityRecord{}, false
	}
	return w.last()
}

// last ends the walk after the held record.
func (w *walk) last() (types.ActivityRecord, bool) {
	child := w.child
	w.end = true
	w.hasChild = false
	return w.admit(child)
}

// admit applies the stop policy to a record about to be yielded. It returns
// false when the take bound is already exhausted.
func (w *walk) admit(r types.ActivityRecord) (types.ActivityRecord, bool) {
	switch w.filters.Kind() {
	case types.FilterTake:
		if !w.take() {
			return types.ActivityRecord{}, false
		}
	case types.FilterUntil:
		if w.filters.IsUntil(r.ActionAddress()) {
			w.end = true
		}
	case types.FilterBoth:
		if !w.take() {
			return types.ActivityRecord{}, false
		}
		if w.filters.IsUntil(r.ActionAddress()) {
			w.end = true
		}
	}
	return r, true
}

func (w *walk) take() bool {
	if w.remaining == 0 {
		w.end = true
		return false
	}
	w.remaining--
	if w.remaining == 0 {
		w.end = true
	}
	return true
}
