package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

func TestLinkDetailsEndToEnd(t *testing.T) {
	b, b2 := addr("B"), addr("B2")
	c := createLink(t, b, "abc", 1*time.Second)
	d := deleteLink(t, c, 2*time.Second)
	c2 := createLink(t, b2, "xyz", 3*time.Second)

	src := &memSource{blobs: encode(t, c2, d, c)}

	got, err := NewLinkDetailsQuery(b).Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].Create)
	assert.Equal(t, []types.SignedActionHashed{d}, got[0].Deletes)
	assert.False(t, got[0].IsLive())
	assert.True(t, src.rows.closed)

	got, err = NewLinkDetailsQuery(b2).Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c2, got[0].Create)
	assert.Empty(t, got[0].Deletes)
	assert.True(t, got[0].IsLive())
}

func TestLinkDetailsFoldOrderIndependent(t *testing.T) {
	b := addr("B")
	c := createLink(t, b, "abc", time.Second)
	d := deleteLink(t, c, 2*time.Second)
	q := NewLinkDetailsQuery(b)

	fold := func(recs ...types.SignedActionHashed) LinkDetailsState {
		state := q.InitFold()
		for _, r := range recs {
			var err error
			state, err = q.Fold(state, r)
			require.NoError(t, err)
		}
		return state
	}

	createFirst := fold(c, d)
	deleteFirst := fold(d, c)

	require.Contains(t, createFirst, c.Hash)
	require.Contains(t, deleteFirst, c.Hash)
	assert.Equal(t, createFirst[c.Hash], deleteFirst[c.Hash])
	assert.Equal(t, c, *deleteFirst[c.Hash].Create)
	assert.Len(t, deleteFirst[c.Hash].Deletes, 1)
}

func TestLinkDetailsRenderOrdering(t *testing.T) {
	b := addr("B")
	c1 := createLink(t, b, "one", 1*time.Second)
	c2 := createLink(t, b, "two", 2*time.Second)
	c3 := createLink(t, b, "three", 3*time.Second)
	d1late := deleteLink(t, c1, 9*time.Second)
	d1early := deleteLink(t, c1, 5*time.Second)

	orders := [][]types.SignedActionHashed{
		{c1, c2, c3, d1late, d1early},
		{c3, c2, c1, d1early, d1late},
		{d1late, c2, d1early, c3, c1},
	}

	for _, recs := range orders {
		got, err := NewLinkDetailsQuery(b).FoldItems(recs)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []types.SignedActionHashed{c1, c2, c3}, []types.SignedActionHashed{got[0].Create, got[1].Create, got[2].Create})
		assert.Equal(t, []types.SignedActionHashed{d1early, d1late}, got[0].Deletes)
	}
}

func TestLinkDetailsDropsOrphanDeletes(t *testing.T) {
	b := addr("B")
	c := createLink(t, b, "abc", time.Second)
	orphan := createLink(t, b, "never-stored", time.Second)
	d := deleteLink(t, orphan, 2*time.Second)

	got, err := NewLinkDetailsQuery(b).FoldItems([]types.SignedActionHashed{d, c})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].Create)
	assert.Empty(t, got[0].Deletes)
}

func TestLinkDetailsIsRelevant(t *testing.T) {
	b := addr("B")
	withType := func(zome uint8, lt types.LinkType) func(*types.CreateLink) {
		return func(cl *types.CreateLink) {
			cl.ZomeIndex = zome
			cl.LinkType = lt
		}
	}

	tests := []struct {
		name  string
		query LinkDetailsQuery
		rec   types.SignedActionHashed
		want  bool
	}{
		{
			name:  "create on base",
			query: NewLinkDetailsQuery(b),
			rec:   createLink(t, b, "abc", 0),
			want:  true,
		},
		{
			name:  "create on other base",
			query: NewLinkDetailsQuery(b),
			rec:   createLink(t, addr("other"), "abc", 0),
		},
		{
			name:  "delete on base",
			query: NewLinkDetailsQuery(b),
			rec:   deleteLink(t, createLink(t, b, "abc", 0), time.Second),
			want:  true,
		},
		{
			name:  "delete on other base",
			query: NewLinkDetailsQuery(b),
			rec:   deleteLink(t, createLink(t, addr("other"), "abc", 0), time.Second),
		},
		{
			name:  "type inside range",
			query: NewLinkDetailsQuery(b, WithTypeRanges(types.LinkTypeRange{ZomeIndex: 1, From: 2, To: 4})),
			rec:   createLink(t, b, "abc", 0, withType(1, 3)),
			want:  true,
		},
		{
			name:  "type outside range",
			query: NewLinkDetailsQuery(b, WithTypeRanges(types.LinkTypeRange{ZomeIndex: 1, From: 2, To: 4})),
			rec:   createLink(t, b, "abc", 0, withType(1, 5)),
		},
		{
			name:  "type in other zome",
			query: NewLinkDetailsQuery(b, WithTypeRanges(types.LinkTypeRange{ZomeIndex: 1, From: 2, To: 4})),
			rec:   createLink(t, b, "abc", 0, withType(0, 3)),
		},
		{
			name:  "empty range set matches nothing",
			query: NewLinkDetailsQuery(b, WithTypeRanges()),
			rec:   createLink(t, b, "abc", 0),
		},
		{
			name:  "tag prefix match",
			query: NewLinkDetailsQuery(b, WithTagPrefix(types.LinkTag("ab"))),
			rec:   createLink(t, b, "abc", 0),
			want:  true,
		},
		{
			name:  "tag prefix mismatch",
			query: NewLinkDetailsQuery(b, WithTagPrefix(types.LinkTag("b"))),
			rec:   createLink(t, b, "abc", 0),
		},
		{
			name:  "tag filter does not apply to deletes",
			query: NewLinkDetailsQuery(b, WithTagPrefix(types.LinkTag("zzz"))),
			rec:   deleteLink(t, createLink(t, b, "abc", 0), time.Second),
			want:  true,
		},
		{
			name:  "non-link action",
			query: NewLinkDetailsQuery(b),
			rec: signed(t, types.Action{
				Type:   types.ActionCreate,
				Author: "alice",
				Create: &types.Create{EntryType: "post", EntryHash: b},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.IsRelevant(tt.rec))
		})
	}
}

func TestLinkDetailsFoldRejectsUnexpectedAction(t *testing.T) {
	q := NewLinkDetailsQuery(addr("B"))
	rec := signed(t, types.Action{
		Type:   types.ActionCreate,
		Author: "alice",
		Create: &types.Create{EntryType: "post"},
	})

	_, err := q.Fold(q.InitFold(), rec)
	assert.ErrorIs(t, err, ErrUnexpectedAction)
}

func TestLinkDetailsCorruptRowAbortsQuery(t *testing.T) {
	b := addr("B")
	c := createLink(t, b, "abc", time.Second)
	blobs := append(encode(t, c), []byte("{not json"))

	got, err := NewLinkDetailsQuery(b).Run(context.Background(), &memSource{blobs: blobs})
	assert.Nil(t, got, "a failed query returns no partial output")

	var qerr *Error
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, StageClassify, qerr.Stage)
}

func TestLinkDetailsStatement(t *testing.T) {
	b := addr("B")

	stmt := NewLinkDetailsQuery(b).Statement()
	assert.Contains(t, stmt.Text, "base_hash = ?")
	assert.Contains(t, stmt.Text, "validation_status = 'valid'")
	assert.Equal(t, []any{b.String()}, stmt.Args)

	stmt = NewLinkDetailsQuery(b, WithTagPrefix(types.LinkTag("ab"))).Statement()
	assert.Contains(t, stmt.Text, "substr(tag_hex, 1, ?) = ?")
	assert.Equal(t, []any{b.String(), 4, "6162"}, stmt.Args)
}

func TestLive(t *testing.T) {
	b := addr("B")
	c1 := createLink(t, b, "one", time.Second)
	c2 := createLink(t, b, "two", 2*time.Second)
	d := deleteLink(t, c1, 3*time.Second)

	got, err := NewLinkDetailsQuery(b).FoldItems([]types.SignedActionHashed{c1, c2, d})
	require.NoError(t, err)

	live := Live(got)
	require.Len(t, live, 1)
	assert.Equal(t, c2, live[0].Create)
}
