package types

// Validation statuses carried by stored records. Only valid records are
// visible to link queries.
const (
	StatusValid     = "valid"
	StatusRejected  = "rejected"
	StatusAbandoned = "abandoned"
)

// validStatuses is the set of recognized validation statuses.
var validStatuses = map[string]bool{
	StatusValid:     true,
	StatusRejected:  true,
	StatusAbandoned: true,
}

// ValidStatus reports whether s is a recognized validation status.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// Store holds signed chain records keyed by action hash. Callers attach to a
// backend, read and write records, and detach when done.
type Store interface {
	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach, every
	// other operation returns ErrStoreDetached.
	Detach() error

	// Put stores a record. Storing a record whose hash is already present
	// is a no-op. Returns ErrHashMismatch if the hash does not match the
	// action.
	Put(record SignedActionHashed) error

	// Get returns the record with the given action hash, or ErrNotFound.
	Get(hash Hash) (SignedActionHashed, error)

	// Append builds the next action on the author's chain from a payload
	// template, assigning sequence, previous action, and timestamp. A
	// genesis action is written first when the chain is empty.
	Append(author string, template Action) (SignedActionHashed, error)

	// Activity returns the author's records ordered by action sequence,
	// highest first.
	Activity(author string) ([]ActivityRecord, error)

	// AgentActivity summarises the author's chain.
	AgentActivity(author string) (AgentActivity, error)

	// SetValidationStatus records the validation outcome for a record.
	SetValidationStatus(hash Hash, status string) error
}
