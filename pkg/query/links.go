package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// LinkDetails is one link creation together with every deletion that
// targets it, deletions ordered by timestamp. A link with no deletions is
// live.
type LinkDetails struct {
	Create  types.SignedActionHashed   `json:"create"`
	Deletes []types.SignedActionHashed `json:"deletes"`
}

// IsLive reports whether no deletion targets the link.
func (d LinkDetails) IsLive() bool {
	return len(d.Deletes) == 0
}

// LinkEntry is the fold state for one link creation hash. Create stays nil
// until the creation record itself has been folded.
type LinkEntry struct {
	Create  *types.SignedActionHashed
	Deletes map[types.Hash]types.SignedActionHashed
}

// LinkDetailsState maps link creation hashes to their entries.
type LinkDetailsState map[types.Hash]*LinkEntry

// LinkDetailsQuery reconstructs every link from a base address together
// with its deletion history. Both live and deleted links are reported.
type LinkDetailsQuery struct {
	base       types.Hash
	typeRanges types.LinkTypeRanges
	hasTypes   bool
	tagPrefix  string
	hasTag     bool
}

var _ Query[types.SignedActionHashed, LinkDetailsState, []LinkDetails] = LinkDetailsQuery{}

// LinkOption narrows a LinkDetailsQuery.
type LinkOption func(*LinkDetailsQuery)

// WithTypeRanges keeps only link creations whose zome and link type fall in
// one of the ranges.
func WithTypeRanges(ranges ...types.LinkTypeRange) LinkOption {
	return func(q *LinkDetailsQuery) {
		q.typeRanges = slices.Clone(ranges)
		q.hasTypes = true
	}
}

// WithTagPrefix keeps only link creations whose tag starts with prefix.
func WithTagPrefix(prefix types.LinkTag) LinkOption {
	return func(q *LinkDetailsQuery) {
		q.tagPrefix = prefix.Hex()
		q.hasTag = true
	}
}

// NewLinkDetailsQuery returns a query for links from base.
func NewLinkDetailsQuery(base types.Hash, opts ...LinkOption) LinkDetailsQuery {
	q := LinkDetailsQuery{base: base}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Run executes the query against src.
func (q LinkDetailsQuery) Run(ctx context.Context, src Source) ([]LinkDetails, error) {
	return Run[types.SignedActionHashed, LinkDetailsState, []LinkDetails](ctx, src, q)
}

// FoldItems runs the query over records already held in memory.
func (q LinkDetailsQuery) FoldItems(recs []types.SignedActionHashed) ([]LinkDetails, error) {
	return FoldItems[types.SignedActionHashed, LinkDetailsState, []LinkDetails](q, recs)
}

// Base returns the queried base address.
func (q LinkDetailsQuery) Base() types.Hash {
	return q.base
}

// Statement selects valid link actions on the base. Type ranges are applied
// by IsRelevant only.
func (q LinkDetailsQuery) Statement() Statement {
	var sb strings.Builder
	sb.WriteString("SELECT action_blob FROM actions")
	sb.WriteString(" WHERE action_type IN ('CreateLink', 'DeleteLink')")
	sb.WriteString(" AND base_hash = ?")
	sb.WriteString(" AND validation_status = 'valid'")
	args := []any{q.base.String()}

	if q.hasTag {
		sb.WriteString(" AND (action_type = 'DeleteLink' OR substr(tag_hex, 1, ?) = ?)")
		args = append(args, len(q.tagPrefix), q.tagPrefix)
	}
	return Statement{Text: sb.String(), Args: args}
}

// InitFold returns an empty state.
func (q LinkDetailsQuery) InitFold() LinkDetailsState {
	return make(LinkDetailsState)
}

// Classify decodes the action_blob column.
func (q LinkDetailsQuery) Classify(row Row) (types.SignedActionHashed, error) {
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return types.SignedActionHashed{}, fmt.Errorf("scanning action blob: %w", err)
	}
	var rec types.SignedActionHashed
	if err := json.Unmarshal(blob, &rec); err != nil {
		return types.SignedActionHashed{}, fmt.Errorf("decoding action blob: %w", err)
	}
	return rec, nil
}

// IsRelevant keeps link creations on the base that pass the type and tag
// filters, and every link deletion on the base.
func (q LinkDetailsQuery) IsRelevant(rec types.SignedActionHashed) bool {
	a := rec.Action
	switch a.Type {
	case types.ActionCreateLink:
		cl := a.CreateLink
		if cl == nil || cl.BaseAddress != q.base {
			return false
		}
		if q.hasTypes && !q.typeRanges.Contains(cl.ZomeIndex, cl.LinkType) {
			return false
		}
		if q.hasTag && !strings.HasPrefix(cl.Tag.Hex(), q.tagPrefix) {
			return false
		}
		return true
	case types.ActionDeleteLink:
		return a.DeleteLink != nil && a.DeleteLink.BaseAddress == q.base
	}
	return false
}

// Fold files a creation under its own hash and a deletion under the hash of
// the creation it targets. Arrival order does not matter.
func (q LinkDetailsQuery) Fold(state LinkDetailsState, rec types.SignedActionHashed) (LinkDetailsState, error) {
	switch rec.Action.Type {
	case types.ActionCreateLink:
		entry := state.entry(rec.Hash)
		if entry.Create == nil {
			r := rec
			entry.Create = &r
		}
	case types.ActionDeleteLink:
		if rec.Action.DeleteLink == nil {
			return state, fmt.Errorf("%w: DeleteLink without payload", types.ErrInvalidAction)
		}
		entry := state.entry(rec.Action.DeleteLink.LinkAddAddress)
		entry.Deletes[rec.Hash] = rec
	default:
		return state, fmt.Errorf("%w: %s", ErrUnexpectedAction, rec.Action.Type)
	}
	return state, nil
}

func (s LinkDetailsState) entry(h types.Hash) *LinkEntry {
	e, ok := s[h]
	if !ok {
		e = &LinkEntry{Deletes: make(map[types.Hash]types.SignedActionHashed)}
		s[h] = e
	}
	return e
}

// Render drops deletions whose creation was never seen and orders the rest
// by creation timestamp, each deletion list by deletion timestamp.
func (q LinkDetailsQuery) Render(state LinkDetailsState) ([]LinkDetails, error) {
	out := make([]LinkDetails, 0, len(state))
	for _, e := range state {
		if e.Create == nil {
			continue
		}
		deletes := make([]types.SignedActionHashed, 0, len(e.Deletes))
		for _, d := range e.Deletes {
			deletes = append(deletes, d)
		}
		slices.SortFunc(deletes, byTimestamp)
		out = append(out, LinkDetails{Create: *e.Create, Deletes: deletes})
	}
	slices.SortFunc(out, func(a, b LinkDetails) int {
		return byTimestamp(a.Create, b.Create)
	})
	return out, nil
}

// byTimestamp orders records by timestamp, then by hash so equal timestamps
// render deterministically.
func byTimestamp(a, b types.SignedActionHashed) int {
	if c := a.Action.Timestamp.Compare(b.Action.Timestamp); c != 0 {
		return c
	}
	return bytes.Compare(a.Hash[:], b.Hash[:])
}

// Live returns the links in details that have no deletions.
func Live(details []LinkDetails) []LinkDetails {
	var out []LinkDetails
	for _, d := range details {
		if d.IsLive() {
			out = append(out, d)
		}
	}
	return out
}
