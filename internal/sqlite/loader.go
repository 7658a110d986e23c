package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// loadStats reports the outcome of loading a JSONL file.
type loadStats struct {
	Loaded  int
	Skipped int
}

// loadActionsJSONL reads actions.jsonl and inserts every storable record
// into the actions table. Loading is transactional: all succeed or the
// database remains empty. Malformed records, records that fail validation,
// and records whose hash does not match are skipped with a warning. A hash
// seen twice keeps its first occurrence. Unknown JSON fields are ignored.
func loadActionsJSONL(db *sql.DB, path string) (loadStats, error) {
	var stats loadStats

	records, err := readJSONL(path)
	if err != nil {
		return stats, err
	}
	if len(records) == 0 {
		return stats, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return stats, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertActionSQL)
	if err != nil {
		return stats, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, raw := range records {
		var rec actionRecordJSON
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Skipped++
			log.WithFields(logrus.Fields{"line": i + 1, "error": err}).Warn("skipping undecodable record")
			continue
		}
		if err := rec.check(); err != nil {
			stats.Skipped++
			log.WithFields(logrus.Fields{"line": i + 1, "hash": rec.Hash.Short(), "error": err}).
				Warn("skipping invalid record")
			continue
		}
		args, err := rowValues(rec.SignedActionHashed, rec.status())
		if err != nil {
			return stats, err
		}
		res, err := stmt.Exec(args...)
		if err != nil {
			return stats, fmt.Errorf("inserting %s: %w", rec.Hash.Short(), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			stats.Skipped++
			continue
		}
		stats.Loaded++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing load transaction: %w", err)
	}
	return stats, nil
}

// insertActionSQL inserts one row in actionColumns order, ignoring a hash
// that is already stored.
var insertActionSQL = fmt.Sprintf(
	"INSERT OR IGNORE INTO actions (%s) VALUES (%s)",
	strings.Join(actionColumns, ", "),
	strings.TrimSuffix(strings.Repeat("?, ", len(actionColumns)), ", "),
)
