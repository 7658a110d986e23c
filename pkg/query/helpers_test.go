package query

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

var epoch = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// sliceRows is an in-memory Rows over encoded blobs.
type sliceRows struct {
	blobs  [][]byte
	pos    int
	err    error
	closed bool
}

func (r *sliceRows) Next() bool {
	if r.pos >= len(r.blobs) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	if len(dest) != 1 {
		return errors.New("expected one destination")
	}
	p, ok := dest[0].(*[]byte)
	if !ok {
		return errors.New("destination must be *[]byte")
	}
	*p = r.blobs[r.pos-1]
	return nil
}

func (r *sliceRows) Err() error   { return r.err }
func (r *sliceRows) Close() error { r.closed = true; return nil }

// memSource serves the same blobs for every statement.
type memSource struct {
	blobs [][]byte
	err   error
	last  Statement
	rows  *sliceRows
}

func (s *memSource) QueryRows(_ context.Context, stmt Statement) (Rows, error) {
	s.last = stmt
	if s.err != nil {
		return nil, s.err
	}
	s.rows = &sliceRows{blobs: s.blobs}
	return s.rows, nil
}

func encode(t *testing.T, recs ...types.SignedActionHashed) [][]byte {
	t.Helper()
	out := make([][]byte, 0, len(recs))
	for _, r := range recs {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func addr(s string) types.Hash {
	return types.HashBytes([]byte(s))
}

func signed(t *testing.T, a types.Action) types.SignedActionHashed {
	t.Helper()
	s, err := types.NewSignedActionHashed(a, []byte("sig"))
	require.NoError(t, err)
	return s
}

func createLink(t *testing.T, base types.Hash, tag string, at time.Duration, opts ...func(*types.CreateLink)) types.SignedActionHashed {
	t.Helper()
	cl := &types.CreateLink{
		BaseAddress:   base,
		TargetAddress: addr("target-" + tag),
		Tag:           types.LinkTag(tag),
	}
	for _, o := range opts {
		o(cl)
	}
	return signed(t, types.Action{
		Type:       types.ActionCreateLink,
		Author:     "alice",
		Timestamp:  epoch.Add(at),
		ActionSeq:  1,
		CreateLink: cl,
	})
}

func deleteLink(t *testing.T, create types.SignedActionHashed, at time.Duration) types.SignedActionHashed {
	t.Helper()
	return signed(t, types.Action{
		Type:      types.ActionDeleteLink,
		Author:    "bob",
		Timestamp: epoch.Add(at),
		ActionSeq: 2,
		DeleteLink: &types.DeleteLink{
			BaseAddress:    create.Action.CreateLink.BaseAddress,
			LinkAddAddress: create.Hash,
		},
	})
}
