package sqlite

// Schema DDL. Every column other than action_blob is derived from the blob
// and exists only so statements can filter and order without decoding.
const createActions = `CREATE TABLE actions (
    action_hash TEXT PRIMARY KEY,
    author TEXT NOT NULL,
    action_seq INTEGER NOT NULL,
    prev_action TEXT,
    action_type TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    base_hash TEXT,
    zome_index INTEGER,
    link_type INTEGER,
    tag_hex TEXT,
    link_add_hash TEXT,
    action_blob BLOB NOT NULL,
    validation_status TEXT NOT NULL DEFAULT 'valid'
);`

// Index DDL for the chain and link lookups.
const (
	idxActionsAuthorSeq = `CREATE INDEX idx_actions_author_seq ON actions(author, action_seq);`
	idxActionsBaseType  = `CREATE INDEX idx_actions_base_type ON actions(base_hash, action_type);`
	idxActionsLinkAdd   = `CREATE INDEX idx_actions_link_add ON actions(link_add_hash);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createActions,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxActionsAuthorSeq,
	idxActionsBaseType,
	idxActionsLinkAdd,
}

// timestampLayout stores timestamps at fixed width in UTC so that text
// comparison orders them chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// actionColumns is the insert column order used by insertAction and the
// JSONL loader.
var actionColumns = []string{
	"action_hash", "author", "action_seq", "prev_action", "action_type",
	"timestamp", "base_hash", "zome_index", "link_type", "tag_hex",
	"link_add_hash", "action_blob", "validation_status",
}
