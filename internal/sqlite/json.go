package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// actionRecordJSON is one line of actions.jsonl: the signed record plus its
// validation status. A missing status reads as valid.
type actionRecordJSON struct {
	types.SignedActionHashed
	ValidationStatus string `json:"validation_status,omitempty"`
}

// status returns the effective validation status.
func (r actionRecordJSON) status() string {
	if r.ValidationStatus == "" {
		return types.StatusValid
	}
	return r.ValidationStatus
}

// check rejects records that cannot be stored: invalid actions, hashes that
// do not match, and unknown statuses.
func (r actionRecordJSON) check() error {
	if err := r.Action.Validate(); err != nil {
		return err
	}
	if err := r.VerifyHash(); err != nil {
		return err
	}
	if !types.ValidStatus(r.status()) {
		return fmt.Errorf("%w: %q", types.ErrInvalidStatus, r.ValidationStatus)
	}
	return nil
}

// encodeBlob returns the action_blob column value for rec.
func encodeBlob(rec types.SignedActionHashed) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", rec.Hash.Short(), err)
	}
	return b, nil
}

// decodeBlob parses an action_blob column value.
func decodeBlob(blob []byte) (types.SignedActionHashed, error) {
	var rec types.SignedActionHashed
	if err := json.Unmarshal(blob, &rec); err != nil {
		return types.SignedActionHashed{}, fmt.Errorf("decoding action blob: %w", err)
	}
	return rec, nil
}

// rowValues returns the column values for rec in actionColumns order.
func rowValues(rec types.SignedActionHashed, status string) ([]any, error) {
	blob, err := encodeBlob(rec)
	if err != nil {
		return nil, err
	}
	a := rec.Action

	var prev, base, tag, linkAdd, zome, linkType any
	if a.PrevAction != nil {
		prev = a.PrevAction.String()
	}
	if h, ok := a.BaseAddress(); ok {
		base = h.String()
	}
	if cl := a.CreateLink; cl != nil {
		zome = int64(cl.ZomeIndex)
		linkType = int64(cl.LinkType)
		tag = cl.Tag.Hex()
	}
	if dl := a.DeleteLink; dl != nil {
		linkAdd = dl.LinkAddAddress.String()
	}

	return []any{
		rec.Hash.String(),
		a.Author,
		int64(a.ActionSeq),
		prev,
		string(a.Type),
		a.Timestamp.UTC().Format(timestampLayout),
		base,
		zome,
		linkType,
		tag,
		linkAdd,
		blob,
		status,
	}, nil
}
