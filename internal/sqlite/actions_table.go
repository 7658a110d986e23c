package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/sourcechain/internal/metrics"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// Cache lookup results.
const (
	cacheHit  = "hit"
	cacheMiss = "miss"
)

const headSQL = `SELECT action_blob FROM actions
WHERE author = ? AND validation_status = 'valid'
ORDER BY action_seq DESC, action_hash ASC
LIMIT 1`

// Put stores a signed record. Storing a hash that is already present is a
// no-op. The record must validate and its hash must match its action.
func (b *Backend) Put(rec types.SignedActionHashed) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := rec.Action.Validate(); err != nil {
		return err
	}
	if err := rec.VerifyHash(); err != nil {
		return err
	}
	_, err := b.putLocked(rec)
	return err
}

// putLocked inserts rec and appends it to the JSONL file. It reports whether
// the record was new. The caller must hold b.mu for writing.
func (b *Backend) putLocked(rec types.SignedActionHashed) (bool, error) {
	args, err := rowValues(rec, types.StatusValid)
	if err != nil {
		return false, err
	}
	res, err := b.db.Exec(insertActionSQL, args...)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", rec.Hash.Short(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	line, err := json.Marshal(actionRecordJSON{SignedActionHashed: rec})
	if err != nil {
		return false, fmt.Errorf("encoding record %s: %w", rec.Hash.Short(), err)
	}
	if err := appendJSONL(b.jsonlPath, line); err != nil {
		// Keep the index from running ahead of the source of truth.
		if _, derr := b.db.Exec("DELETE FROM actions WHERE action_hash = ?", rec.Hash.String()); derr != nil {
			log.WithError(derr).Error("removing unpersisted record")
		}
		return false, fmt.Errorf("persisting %s: %w", rec.Hash.Short(), err)
	}

	b.cache.Add(rec.Hash, rec)
	metrics.ActionsStored.WithLabelValues(string(rec.Action.Type)).Inc()
	return true, nil
}

// Get returns the record with the given hash regardless of its validation
// status, or ErrNotFound.
func (b *Backend) Get(hash types.Hash) (types.SignedActionHashed, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.SignedActionHashed{}, types.ErrStoreDetached
	}

	if v, ok := b.cache.Get(hash); ok {
		metrics.CacheLookups.WithLabelValues(cacheHit).Inc()
		return v.(types.SignedActionHashed), nil
	}
	metrics.CacheLookups.WithLabelValues(cacheMiss).Inc()

	var blob []byte
	err := b.db.QueryRow("SELECT action_blob FROM actions WHERE action_hash = ?", hash.String()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SignedActionHashed{}, types.ErrNotFound
	}
	if err != nil {
		return types.SignedActionHashed{}, fmt.Errorf("reading %s: %w", hash.Short(), err)
	}
	rec, err := decodeBlob(blob)
	if err != nil {
		return types.SignedActionHashed{}, err
	}
	b.cache.Add(hash, rec)
	return rec, nil
}

// Append builds the next action on author's chain from template and stores
// it. Sequence, previous action, author, and timestamp are assigned here;
// the template supplies the type and payload. An empty chain first receives
// a genesis Dna action with a fresh network seed. The timestamp never runs
// backwards relative to the current head.
func (b *Backend) Append(author string, template types.Action) (types.SignedActionHashed, error) {
	if author == "" {
		return types.SignedActionHashed{}, types.ErrInvalidAuthor
	}
	if template.Type == types.ActionDna && template.Dna == nil {
		template.Dna = &types.Dna{NetworkSeed: newNetworkSeed()}
	}
	probe := template
	probe.Author = author
	if err := probe.Validate(); err != nil {
		return types.SignedActionHashed{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.SignedActionHashed{}, types.ErrStoreDetached
	}

	head, err := b.headLocked(author)
	if err != nil {
		return types.SignedActionHashed{}, err
	}

	if template.Type == types.ActionDna {
		if head != nil {
			return types.SignedActionHashed{}, fmt.Errorf("%w: chain of %s already has a genesis action", types.ErrInvalidAction, author)
		}
		return b.appendLocked(author, nil, template)
	}

	if head == nil {
		genesis, err := b.appendLocked(author, nil, types.Action{
			Type: types.ActionDna,
			Dna:  &types.Dna{NetworkSeed: newNetworkSeed()},
		})
		if err != nil {
			return types.SignedActionHashed{}, fmt.Errorf("writing genesis: %w", err)
		}
		head = &genesis
	}
	return b.appendLocked(author, head, template)
}

// appendLocked links template onto head (nil for genesis) and stores it.
func (b *Backend) appendLocked(author string, head *types.SignedActionHashed, template types.Action) (types.SignedActionHashed, error) {
	a := template
	a.Author = author
	a.Timestamp = time.Now().UTC()
	a.ActionSeq = 0
	a.PrevAction = nil

	if head != nil {
		if head.Action.ActionSeq == math.MaxUint32 {
			return types.SignedActionHashed{}, types.ErrSeqOverflow
		}
		a.ActionSeq = head.Action.ActionSeq + 1
		prev := head.Hash
		a.PrevAction = &prev
		if a.Timestamp.Before(head.Action.Timestamp) {
			a.Timestamp = head.Action.Timestamp.UTC()
		}
	}

	if err := a.Validate(); err != nil {
		return types.SignedActionHashed{}, err
	}
	rec, err := types.NewSignedActionHashed(a, nil)
	if err != nil {
		return types.SignedActionHashed{}, err
	}
	if _, err := b.putLocked(rec); err != nil {
		return types.SignedActionHashed{}, err
	}

	log.WithFields(logrus.Fields{
		"author": author,
		"seq":    a.ActionSeq,
		"type":   a.Type,
		"hash":   rec.Hash.Short(),
	}).Debug("appended action")
	return rec, nil
}

// headLocked returns the author's highest valid record, preferring the
// lowest hash among forked siblings, or nil for an empty chain.
func (b *Backend) headLocked(author string) (*types.SignedActionHashed, error) {
	var blob []byte
	err := b.db.QueryRow(headSQL, author).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading head of %s: %w", author, err)
	}
	rec, err := decodeBlob(blob)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// newNetworkSeed generates a genesis network seed.
func newNetworkSeed() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// SetValidationStatus records the validation outcome for a stored record
// and rewrites the JSONL file. Returns ErrNotFound for an unknown hash.
func (b *Backend) SetValidationStatus(hash types.Hash, status string) error {
	if !types.ValidStatus(status) {
		return fmt.Errorf("%w: %q", types.ErrInvalidStatus, status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	res, err := b.db.Exec("UPDATE actions SET validation_status = ? WHERE action_hash = ?", status, hash.String())
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", hash.Short(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return b.persistLocked()
}

// persistLocked rewrites the JSONL file from the database in insertion
// order.
func (b *Backend) persistLocked() error {
	rows, err := b.db.Query("SELECT action_blob, validation_status FROM actions ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("reading actions: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var (
			blob   []byte
			status string
		)
		if err := rows.Scan(&blob, &status); err != nil {
			return fmt.Errorf("scanning action: %w", err)
		}
		rec, err := decodeBlob(blob)
		if err != nil {
			return err
		}
		line := actionRecordJSON{SignedActionHashed: rec}
		if status != types.StatusValid {
			line.ValidationStatus = status
		}
		raw, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.Hash.Short(), err)
		}
		records = append(records, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading actions: %w", err)
	}
	return writeJSONL(b.jsonlPath, records)
}
