package sqlite

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/sourcechain/internal/metrics"
	"github.com/mesh-intelligence/sourcechain/pkg/chain"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// activitySQL lists an author's valid records in traversal order: sequence
// descending, forked siblings by hash.
const activitySQL = `SELECT action_blob FROM actions
WHERE author = ? AND validation_status = 'valid'
ORDER BY action_seq DESC, action_hash ASC`

// walkSQL is activitySQL narrowed to records at or below the sequence of a
// starting position. An unknown position selects nothing.
const walkSQL = `SELECT action_blob FROM actions
WHERE author = ? AND validation_status = 'valid'
  AND action_seq <= (SELECT action_seq FROM actions WHERE action_hash = ? AND validation_status = 'valid')
ORDER BY action_seq DESC, action_hash ASC`

// WalkResult is the outcome of a chain walk.
type WalkResult struct {
	Records []types.ActivityRecord `json:"records"`
	// Defect is set when the walk ended on a non-genesis record that
	// declares no previous action.
	Defect bool `json:"defect,omitempty"`
}

// activitySeq streams the rows selected by text as activity records. The
// rows stay open only while the consumer keeps pulling. The first read or
// decode error ends the stream and is stored in *errp.
func (b *Backend) activitySeq(ctx context.Context, errp *error, text string, args ...any) iter.Seq[types.ActivityRecord] {
	return func(yield func(types.ActivityRecord) bool) {
		rows, err := b.db.QueryContext(ctx, text, args...)
		if err != nil {
			*errp = fmt.Errorf("querying activity: %w", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var blob []byte
			if err := rows.Scan(&blob); err != nil {
				*errp = fmt.Errorf("scanning activity: %w", err)
				return
			}
			rec, err := decodeBlob(blob)
			if err != nil {
				*errp = err
				return
			}
			if !yield(types.ActivityRecord{Action: rec}) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			*errp = fmt.Errorf("reading activity: %w", err)
		}
	}
}

// Activity returns the author's valid records ordered by action sequence,
// highest first. Forked siblings are ordered by hash.
func (b *Backend) Activity(author string) ([]types.ActivityRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.activityLocked(author)
}

func (b *Backend) activityLocked(author string) ([]types.ActivityRecord, error) {
	var (
		err error
		out []types.ActivityRecord
	)
	for r := range b.activitySeq(context.Background(), &err, activitySQL, author) {
		out = append(out, r)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AgentActivity summarises the author's chain: its records, its status, and
// the highest sequence observed. A chain with two valid records at the same
// sequence is reported as forked at the lowest such sequence.
func (b *Backend) AgentActivity(author string) (types.AgentActivity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.AgentActivity{}, types.ErrStoreDetached
	}

	records, err := b.activityLocked(author)
	if err != nil {
		return types.AgentActivity{}, err
	}
	return summarize(author, records), nil
}

// summarize builds an activity summary from records sorted as activitySQL
// returns them.
func summarize(author string, records []types.ActivityRecord) types.AgentActivity {
	if len(records) == 0 {
		return types.EmptyActivity(author)
	}

	top := records[0].ActionSeq()
	highest := &types.HighestObserved{ActionSeq: top}
	for _, r := range records {
		if r.ActionSeq() != top {
			break
		}
		highest.Hashes = append(highest.Hashes, r.ActionAddress())
	}

	// Records are in descending sequence, so the last fork seen is the
	// lowest one.
	var fork *types.ChainFork
	for i := 1; i < len(records); i++ {
		if records[i].ActionSeq() == records[i-1].ActionSeq() {
			seq := records[i].ActionSeq()
			first := i - 1
			for first > 0 && records[first-1].ActionSeq() == seq {
				first--
			}
			fork = &types.ChainFork{
				ForkSeq: seq,
				First:   records[first].ActionAddress(),
				Second:  records[first+1].ActionAddress(),
			}
		}
	}

	act := types.AgentActivity{
		Agent:           author,
		Activity:        records,
		HighestObserved: highest,
	}
	if fork != nil {
		act.Status = types.ChainStatus{Kind: types.ChainStatusForked, Fork: fork}
	} else {
		act.Status = types.ChainStatus{
			Kind: types.ChainStatusValid,
			Head: &types.ChainHead{ActionSeq: top, Hash: records[0].ActionAddress()},
		}
	}
	return act
}

// Walk traverses the author's valid records from filter.Position toward
// genesis, honoring the filter's stop policy. Rows are read lazily and the
// query is closed as soon as the traversal ends.
func (b *Backend) Walk(ctx context.Context, author string, filter types.ChainFilter) (WalkResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return WalkResult{}, types.ErrStoreDetached
	}

	var scanErr error
	src := b.activitySeq(ctx, &scanErr, walkSQL, author, filter.Position.String())
	it := chain.NewFilterIter(filter, src)

	var res WalkResult
	for r := range it.All() {
		res.Records = append(res.Records, r)
	}
	if scanErr != nil {
		return WalkResult{}, fmt.Errorf("walking chain of %s: %w", author, scanErr)
	}
	if err := ctx.Err(); err != nil {
		return WalkResult{}, err
	}
	res.Defect = it.Defect()

	metrics.WalkRecords.Observe(float64(len(res.Records)))
	fields := logrus.Fields{
		"author":   author,
		"position": filter.Position.Short(),
		"filter":   filter.Filters.Kind(),
		"records":  len(res.Records),
	}
	if res.Defect {
		metrics.WalkDefects.Inc()
		log.WithFields(fields).Warn("chain walk ended on a record without a previous action")
	} else {
		log.WithFields(fields).Debug("chain walk")
	}
	return res, nil
}
