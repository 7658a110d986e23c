package types

import (
	"bytes"
	"sort"
)

// FilterKind selects the stop condition of a chain traversal.
type FilterKind uint8

// Filter kinds.
const (
	FilterToGenesis FilterKind = iota
	FilterTake
	FilterUntil
	FilterBoth
)

// String returns the lower-case name of the kind.
func (k FilterKind) String() string {
	switch k {
	case FilterToGenesis:
		return "to_genesis"
	case FilterTake:
		return "take"
	case FilterUntil:
		return "until"
	case FilterBoth:
		return "both"
	}
	return "unknown"
}

// ChainFilters is the stop policy of a traversal. Exactly one policy is
// active; Both stops on whichever of its conditions triggers first.
type ChainFilters struct {
	kind  FilterKind
	take  uint32
	until map[Hash]struct{}
}

// ToGenesis never stops early.
func ToGenesis() ChainFilters {
	return ChainFilters{kind: FilterToGenesis}
}

// Take stops after n records.
func Take(n uint32) ChainFilters {
	return ChainFilters{kind: FilterTake, take: n}
}

// Until stops after the first record whose hash is in hashes.
func Until(hashes ...Hash) ChainFilters {
	return ChainFilters{kind: FilterUntil, until: hashSet(hashes)}
}

// Both stops after n records or after an until hash, whichever comes first.
func Both(n uint32, hashes ...Hash) ChainFilters {
	return ChainFilters{kind: FilterBoth, take: n, until: hashSet(hashes)}
}

func hashSet(hashes []Hash) map[Hash]struct{} {
	set := make(map[Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

// Kind returns the active policy.
func (f ChainFilters) Kind() FilterKind {
	return f.kind
}

// TakeCount returns the take bound and whether one is set.
func (f ChainFilters) TakeCount() (uint32, bool) {
	if f.kind == FilterTake || f.kind == FilterBoth {
		return f.take, true
	}
	return 0, false
}

// UntilHashes returns the until hashes in byte order.
func (f ChainFilters) UntilHashes() []Hash {
	if len(f.until) == 0 {
		return nil
	}
	out := make([]Hash, 0, len(f.until))
	for h := range f.until {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// IsUntil reports whether h is one of the until hashes.
func (f ChainFilters) IsUntil(h Hash) bool {
	_, ok := f.until[h]
	return ok
}

// ChainFilter names where a traversal starts and when it stops.
type ChainFilter struct {
	Position Hash
	Filters  ChainFilters
}

// NewChainFilter starts at position and runs to genesis.
func NewChainFilter(position Hash) ChainFilter {
	return ChainFilter{Position: position, Filters: ToGenesis()}
}

// Take bounds the traversal to n records, keeping any until hashes.
func (f ChainFilter) Take(n uint32) ChainFilter {
	switch f.Filters.kind {
	case FilterUntil, FilterBoth:
		f.Filters = ChainFilters{kind: FilterBoth, take: n, until: f.Filters.until}
	default:
		f.Filters = Take(n)
	}
	return f
}

// Until adds h to the set of hashes that end the traversal, keeping any
// take bound.
func (f ChainFilter) Until(h Hash) ChainFilter {
	until := make(map[Hash]struct{}, len(f.Filters.until)+1)
	for k := range f.Filters.until {
		until[k] = struct{}{}
	}
	until[h] = struct{}{}

	switch f.Filters.kind {
	case FilterTake, FilterBoth:
		f.Filters = ChainFilters{kind: FilterBoth, take: f.Filters.take, until: until}
	default:
		f.Filters = ChainFilters{kind: FilterUntil, until: until}
	}
	return f
}
