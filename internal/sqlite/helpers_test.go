package sqlite

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

var epoch = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testConfig(dir string) types.Config {
	return types.Config{Backend: types.BackendSQLite, DataDir: dir}
}

// setupBackend attaches a backend to a fresh temp directory.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	return attachAt(t, t.TempDir())
}

func attachAt(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(testConfig(dir)))
	t.Cleanup(func() { b.Detach() })
	return b
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

// chainRecord builds a Create action at seq linked to prev.
func chainRecord(t *testing.T, author string, seq uint32, prev *types.Hash, entry string) types.SignedActionHashed {
	t.Helper()
	a := types.Action{
		Type:       types.ActionCreate,
		Author:     author,
		Timestamp:  epoch.Add(time.Duration(seq) * time.Second),
		ActionSeq:  seq,
		PrevAction: prev,
		Create:     &types.Create{EntryType: "note", EntryHash: addr(entry)},
	}
	if seq == 0 && prev == nil {
		a.Type = types.ActionDna
		a.Create = nil
		a.Dna = &types.Dna{NetworkSeed: entry}
	}
	return signed(t, a)
}

// putChain stores a linear chain of n records for author and returns them
// in sequence order.
func putChain(t *testing.T, b *Backend, author string, n int) []types.SignedActionHashed {
	t.Helper()
	var (
		out  []types.SignedActionHashed
		prev *types.Hash
	)
	for i := range n {
		rec := chainRecord(t, author, uint32(i), prev, author+"-"+string(rune('a'+i)))
		require.NoError(t, b.Put(rec))
		h := rec.Hash
		prev = &h
		out = append(out, rec)
	}
	return out
}

func createLinkAction(base types.Hash, tag string) types.Action {
	return types.Action{
		Type: types.ActionCreateLink,
		CreateLink: &types.CreateLink{
			BaseAddress:   base,
			TargetAddress: addr("target-" + tag),
			ZomeIndex:     0,
			LinkType:      1,
			Tag:           types.LinkTag(tag),
		},
	}
}

func deleteLinkAction(create types.SignedActionHashed) types.Action {
	return types.Action{
		Type: types.ActionDeleteLink,
		DeleteLink: &types.DeleteLink{
			BaseAddress:    create.Action.CreateLink.BaseAddress,
			LinkAddAddress: create.Hash,
		},
	}
}

// readLines returns the decoded records of the backend's JSONL file.
func readLines(t *testing.T, dir string) []actionRecordJSON {
	t.Helper()
	raw, err := readJSONL(filepath.Join(dir, actionsJSONL))
	require.NoError(t, err)
	out := make([]actionRecordJSON, 0, len(raw))
	for _, r := range raw {
		var rec actionRecordJSON
		require.NoError(t, json.Unmarshal(r, &rec))
		out = append(out, rec)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func jsonLine(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b) + "\n"
}

func hashes(recs []types.ActivityRecord) []types.Hash {
	out := make([]types.Hash, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ActionAddress())
	}
	return out
}

// openTestDB opens a fresh database with the schema applied.
func openTestDB(t *testing.T, dir string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFile)+dsnPragmas)
	require.NoError(t, err)
	require.NoError(t, createSchema(db))
	t.Cleanup(func() { db.Close() })
	return db
}
