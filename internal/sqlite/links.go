package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/sourcechain/internal/metrics"
	"github.com/mesh-intelligence/sourcechain/pkg/query"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// linkDetailsQuery labels link-details metrics.
const linkDetailsQuery = "link_details"

// maxConcurrentQueries bounds LinkDetailsBatch fan-out.
const maxConcurrentQueries = 4

var _ query.Source = (*Backend)(nil)

// QueryRows executes a query statement. Each statement runs in its own
// SQLite read transaction and so observes a consistent snapshot.
func (b *Backend) QueryRows(ctx context.Context, stmt query.Statement) (query.Rows, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := b.db.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// countingSource counts the rows a query reads through it.
type countingSource struct {
	src  query.Source
	rows int
}

func (c *countingSource) QueryRows(ctx context.Context, stmt query.Statement) (query.Rows, error) {
	rows, err := c.src.QueryRows(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return &countingRows{Rows: rows, n: &c.rows}, nil
}

type countingRows struct {
	query.Rows
	n *int
}

func (r *countingRows) Next() bool {
	if r.Rows.Next() {
		*r.n++
		return true
	}
	return false
}

// LinkDetails returns every link from base with its deletion history,
// ordered by creation timestamp. Only valid records take part.
func (b *Backend) LinkDetails(ctx context.Context, base types.Hash, opts ...query.LinkOption) ([]query.LinkDetails, error) {
	start := time.Now()
	q := query.NewLinkDetailsQuery(base, opts...)
	src := &countingSource{src: b}

	out, err := q.Run(ctx, src)

	metrics.QueryDuration.WithLabelValues(linkDetailsQuery).Observe(time.Since(start).Seconds())
	metrics.QueryRows.WithLabelValues(linkDetailsQuery).Add(float64(src.rows))
	if err != nil {
		metrics.QueryTotal.WithLabelValues(linkDetailsQuery, metrics.ResultError).Inc()
		return nil, fmt.Errorf("link details for %s: %w", base.Short(), err)
	}
	metrics.QueryTotal.WithLabelValues(linkDetailsQuery, metrics.ResultOK).Inc()

	log.WithFields(logrus.Fields{
		"base":  base.Short(),
		"rows":  src.rows,
		"links": len(out),
	}).Debug("link details")
	return out, nil
}

// LinkDetailsBatch runs LinkDetails for each base concurrently. The first
// failure cancels the remaining queries and is returned.
func (b *Backend) LinkDetailsBatch(ctx context.Context, bases []types.Hash, opts ...query.LinkOption) (map[types.Hash][]query.LinkDetails, error) {
	var mu sync.Mutex
	out := make(map[types.Hash][]query.LinkDetails, len(bases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, base := range bases {
		g.Go(func() error {
			details, err := b.LinkDetails(gctx, base, opts...)
			if err != nil {
				return err
			}
			mu.Lock()
			out[base] = details
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats summarises the stored records. Link counts consider valid records
// only: a link is deleted once any valid deletion targets it.
type Stats struct {
	Actions      int            `json:"actions"`
	Authors      int            `json:"authors"`
	ByType       map[string]int `json:"by_type"`
	ByStatus     map[string]int `json:"by_status"`
	LiveLinks    int            `json:"live_links"`
	DeletedLinks int            `json:"deleted_links"`
	Oldest       *time.Time     `json:"oldest,omitempty"`
	Newest       *time.Time     `json:"newest,omitempty"`
}

// linkCountsSQL counts valid link creations and those with a valid deletion.
const linkCountsSQL = `SELECT COUNT(*), COALESCE(SUM(EXISTS (
    SELECT 1 FROM actions d
    WHERE d.link_add_hash = c.action_hash
      AND d.action_type = 'DeleteLink'
      AND d.validation_status = 'valid')), 0)
FROM actions c
WHERE c.action_type = 'CreateLink' AND c.validation_status = 'valid'`

// Stats counts stored records by type and validation status.
func (b *Backend) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return Stats{}, types.ErrStoreDetached
	}

	s := Stats{ByType: map[string]int{}, ByStatus: map[string]int{}}
	if err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT author) FROM actions").Scan(&s.Actions, &s.Authors); err != nil {
		return Stats{}, fmt.Errorf("counting actions: %w", err)
	}
	if err := b.countBy(ctx, "action_type", s.ByType); err != nil {
		return Stats{}, err
	}
	if err := b.countBy(ctx, "validation_status", s.ByStatus); err != nil {
		return Stats{}, err
	}

	var links int
	if err := b.db.QueryRowContext(ctx, linkCountsSQL).Scan(&links, &s.DeletedLinks); err != nil {
		return Stats{}, fmt.Errorf("counting links: %w", err)
	}
	s.LiveLinks = links - s.DeletedLinks

	var oldest, newest sql.NullString
	if err := b.db.QueryRowContext(ctx,
		"SELECT MIN(timestamp), MAX(timestamp) FROM actions").Scan(&oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("reading timestamp range: %w", err)
	}
	var err error
	if s.Oldest, err = parseTimestamp(oldest); err != nil {
		return Stats{}, err
	}
	if s.Newest, err = parseTimestamp(newest); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// parseTimestamp reads a stored timestamp column. NULL yields nil.
func parseTimestamp(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	ts, err := time.Parse(timestampLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parsing stored timestamp %q: %w", v.String, err)
	}
	return &ts, nil
}

// countBy fills into with row counts grouped by column.
func (b *Backend) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM actions GROUP BY %s", column, column))
	if err != nil {
		return fmt.Errorf("grouping by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("grouping by %s: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
