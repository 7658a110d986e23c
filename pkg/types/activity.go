package types

// ActivityRecord is one signed unit of an agent's chain history, as consumed
// by chain traversal.
type ActivityRecord struct {
	Action SignedActionHashed `json:"action"`
}

// ActionAddress returns the hash of the record's action.
func (r ActivityRecord) ActionAddress() Hash {
	return r.Action.Hash
}

// ActionSeq returns the record's position in its chain (0 is genesis).
func (r ActivityRecord) ActionSeq() uint32 {
	return r.Action.Action.ActionSeq
}

// PrevAction returns the hash of the preceding action, or nil for genesis.
func (r ActivityRecord) PrevAction() *Hash {
	return r.Action.Action.PrevAction
}

// Chain status kinds.
const (
	ChainStatusEmpty  = "empty"
	ChainStatusValid  = "valid"
	ChainStatusForked = "forked"
)

// ChainHead identifies the highest action of a chain.
type ChainHead struct {
	ActionSeq uint32 `json:"action_seq"`
	Hash      Hash   `json:"hash"`
}

// ChainFork records the lowest sequence at which two actions compete.
type ChainFork struct {
	ForkSeq uint32 `json:"fork_seq"`
	First   Hash   `json:"first"`
	Second  Hash   `json:"second"`
}

// ChainStatus summarises the shape of an agent's chain. Head is set for
// valid chains, Fork for forked chains.
type ChainStatus struct {
	Kind string     `json:"kind"`
	Head *ChainHead `json:"head,omitempty"`
	Fork *ChainFork `json:"fork,omitempty"`
}

// HighestObserved is the highest sequence seen for an agent together with
// every action hash observed at that sequence.
type HighestObserved struct {
	ActionSeq uint32 `json:"action_seq"`
	Hashes    []Hash `json:"hashes"`
}

// AgentActivity is the activity summary for one agent.
type AgentActivity struct {
	Agent           string           `json:"agent"`
	Activity        []ActivityRecord `json:"activity,omitempty"`
	Status          ChainStatus      `json:"status"`
	HighestObserved *HighestObserved `json:"highest_observed,omitempty"`
}

// EmptyActivity returns the activity summary of an agent with no chain.
func EmptyActivity(agent string) AgentActivity {
	return AgentActivity{
		Agent:  agent,
		Status: ChainStatus{Kind: ChainStatusEmpty},
	}
}
