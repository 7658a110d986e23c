// Package query runs incremental queries over rows supplied by a storage
// backend. A query maps each row to a typed item, keeps the relevant items,
// folds them into per-key state, and renders the state into its output.
//
// Folding is keyed by stable identity (a record hash), so the order in which
// rows arrive does not change the folded state. Only Render imposes an
// output order.
package query

import (
	"context"
	"errors"
	"fmt"
)

// Stage names reported by Error.
const (
	StageStatement = "statement"
	StageScan      = "scan"
	StageClassify  = "classify"
	StageFold      = "fold"
	StageRender    = "render"
)

// ErrUnexpectedAction is returned by a fold that receives a record type the
// query never asks storage for.
var ErrUnexpectedAction = errors.New("unexpected action type in fold")

// Error reports the stage at which a query failed.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Statement is an opaque request to storage: backend-specific text and its
// positional arguments.
type Statement struct {
	Text string
	Args []any
}

// Row is a single stored row. *sql.Row and *sql.Rows satisfy it.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a cursor over stored rows. *sql.Rows satisfies it.
type Rows interface {
	Row
	Next() bool
	Err() error
	Close() error
}

// Source executes statements against storage. Each call must observe a
// consistent snapshot; the pipeline itself takes no locks.
type Source interface {
	QueryRows(ctx context.Context, stmt Statement) (Rows, error)
}

// Query is one concrete query. I is the typed item, S the fold state, and O
// the rendered output. Implementations are plain values carrying only their
// own parameters.
type Query[I, S, O any] interface {
	// Statement describes the rows to request from storage.
	Statement() Statement

	// InitFold returns the empty fold state.
	InitFold() S

	// Classify decodes a stored row. An error means the row is corrupt.
	Classify(row Row) (I, error)

	// IsRelevant reports whether the item takes part in the fold.
	IsRelevant(item I) bool

	// Fold accumulates one relevant item into the state.
	Fold(state S, item I) (S, error)

	// Render turns the finished state into the output, including any sort.
	Render(state S) (O, error)
}

// Run executes q against src. Any classification, fold, or render error
// aborts the query; no partial output is returned.
func Run[I, S, O any](ctx context.Context, src Source, q Query[I, S, O]) (O, error) {
	var zero O

	rows, err := src.QueryRows(ctx, q.Statement())
	if err != nil {
		return zero, &Error{Stage: StageStatement, Err: err}
	}
	defer rows.Close()

	state, err := FoldRows(q, q.InitFold(), rows)
	if err != nil {
		return zero, err
	}

	out, err := q.Render(state)
	if err != nil {
		return zero, &Error{Stage: StageRender, Err: err}
	}
	return out, nil
}

// FoldRows classifies, filters, and folds every row of rows into state. It
// does not close rows.
func FoldRows[I, S, O any](q Query[I, S, O], state S, rows Rows) (S, error) {
	for rows.Next() {
		next, err := Step(q, state, rows)
		if err != nil {
			return state, err
		}
		state = next
	}
	if err := rows.Err(); err != nil {
		return state, &Error{Stage: StageScan, Err: err}
	}
	return state, nil
}

// Step applies classify, filter, and fold to a single row.
func Step[I, S, O any](q Query[I, S, O], state S, row Row) (S, error) {
	item, err := q.Classify(row)
	if err != nil {
		return state, &Error{Stage: StageClassify, Err: err}
	}
	if !q.IsRelevant(item) {
		return state, nil
	}
	next, err := q.Fold(state, item)
	if err != nil {
		return state, &Error{Stage: StageFold, Err: err}
	}
	return next, nil
}

// FoldItems folds already-classified items, applying the relevance filter,
// and renders the result. Used where records are held in memory rather than
// read from storage.
func FoldItems[I, S, O any](q Query[I, S, O], items []I) (O, error) {
	var zero O

	state := q.InitFold()
	for _, item := range items {
		if !q.IsRelevant(item) {
			continue
		}
		next, err := q.Fold(state, item)
		if err != nil {
			return zero, &Error{Stage: StageFold, Err: err}
		}
		state = next
	}

	out, err := q.Render(state)
	if err != nil {
		return zero, &Error{Stage: StageRender, Err: err}
	}
	return out, nil
}
