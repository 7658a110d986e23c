package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkAction(seq uint32, prev *Hash) Action {
	return Action{
		Type:       ActionCreateLink,
		Author:     "alice",
		Timestamp:  time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		ActionSeq:  seq,
		PrevAction: prev,
		CreateLink: &CreateLink{
			BaseAddress:   HashBytes([]byte("base")),
			TargetAddress: HashBytes([]byte("target")),
			Tag:           LinkTag("abc"),
		},
	}
}

func TestActionValidate(t *testing.T) {
	prev := HashBytes([]byte("prev"))

	tests := []struct {
		name    string
		modify  func(a *Action)
		wantErr error
	}{
		{
			name:   "well-formed create link",
			modify: func(a *Action) {},
		},
		{
			name:    "unknown type",
			modify:  func(a *Action) { a.Type = "Update" },
			wantErr: ErrUnknownActionType,
		},
		{
			name:    "empty author",
			modify:  func(a *Action) { a.Author = "" },
			wantErr: ErrInvalidAuthor,
		},
		{
			name:    "payload does not match type",
			modify:  func(a *Action) { a.Type = ActionDeleteLink },
			wantErr: ErrInvalidAction,
		},
		{
			name: "two payloads",
			modify: func(a *Action) {
				a.DeleteLink = &DeleteLink{LinkAddAddress: prev}
			},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "no payload",
			modify:  func(a *Action) { a.CreateLink = nil },
			wantErr: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := linkAction(1, &prev)
			tt.modify(&a)
			err := a.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHashActionIsStableAcrossJSON(t *testing.T) {
	prev := HashBytes([]byte("prev"))
	signed, err := NewSignedActionHashed(linkAction(3, &prev), []byte("sig"))
	require.NoError(t, err)

	data, err := json.Marshal(signed)
	require.NoError(t, err)

	var decoded SignedActionHashed
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, signed.Hash, decoded.Hash)
	assert.NoError(t, decoded.VerifyHash())
}

func TestVerifyHashDetectsTampering(t *testing.T) {
	signed, err := NewSignedActionHashed(linkAction(0, nil), nil)
	require.NoError(t, err)

	signed.Action.ActionSeq = 7
	assert.ErrorIs(t, signed.VerifyHash(), ErrHashMismatch)
}

func TestParseHash(t *testing.T) {
	h := HashBytes([]byte("x"))

	got, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ParseHash("abc")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ParseHash(string(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestBaseAddress(t *testing.T) {
	a := linkAction(1, nil)
	base, ok := a.BaseAddress()
	assert.True(t, ok)
	assert.Equal(t, a.CreateLink.BaseAddress, base)

	dna := Action{Type: ActionDna, Author: "alice", Dna: &Dna{NetworkSeed: "seed"}}
	_, ok = dna.BaseAddress()
	assert.False(t, ok)
}
