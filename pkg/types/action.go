package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType names the kind of a chain action.
type ActionType string

// Action types.
const (
	ActionDna        ActionType = "Dna"
	ActionCreate     ActionType = "Create"
	ActionCreateLink ActionType = "CreateLink"
	ActionDeleteLink ActionType = "DeleteLink"
)

// validActionTypes is the set of recognized action types.
var validActionTypes = map[ActionType]bool{
	ActionDna:        true,
	ActionCreate:     true,
	ActionCreateLink: true,
	ActionDeleteLink: true,
}

// Action is the structural metadata of one signed chain record. Exactly one
// payload field is set, matching Type.
type Action struct {
	Type       ActionType `json:"type"`
	Author     string     `json:"author"`
	Timestamp  time.Time  `json:"timestamp"`
	ActionSeq  uint32     `json:"action_seq"`
	PrevAction *Hash      `json:"prev_action,omitempty"`

	Dna        *Dna        `json:"dna,omitempty"`
	Create     *Create     `json:"create,omitempty"`
	CreateLink *CreateLink `json:"create_link,omitempty"`
	DeleteLink *DeleteLink `json:"delete_link,omitempty"`
}

// Dna is the genesis payload. NetworkSeed makes otherwise identical genesis
// actions hash differently.
type Dna struct {
	NetworkSeed string `json:"network_seed"`
}

// Create records a new entry on the author's chain.
type Create struct {
	EntryType string `json:"entry_type"`
	EntryHash Hash   `json:"entry_hash"`
}

// Validate checks that the action has a known type and the matching
// payload. Chain linkage (sequence and previous action) is not checked here;
// stores accept forked or gapped chains and traversal detects them.
func (a *Action) Validate() error {
	if !validActionTypes[a.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownActionType, a.Type)
	}
	if a.Author == "" {
		return ErrInvalidAuthor
	}

	set := 0
	for _, p := range []bool{a.Dna != nil, a.Create != nil, a.CreateLink != nil, a.DeleteLink != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %s action carries %d payloads", ErrInvalidAction, a.Type, set)
	}

	var ok bool
	switch a.Type {
	case ActionDna:
		ok = a.Dna != nil
	case ActionCreate:
		ok = a.Create != nil
	case ActionCreateLink:
		ok = a.CreateLink != nil
	case ActionDeleteLink:
		ok = a.DeleteLink != nil
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match type %s", ErrInvalidAction, a.Type)
	}
	return nil
}

// BaseAddress returns the link base for link actions and false otherwise.
func (a *Action) BaseAddress() (Hash, bool) {
	switch {
	case a.CreateLink != nil:
		return a.CreateLink.BaseAddress, true
	case a.DeleteLink != nil:
		return a.DeleteLink.BaseAddress, true
	}
	return Hash{}, false
}

// HashAction returns the content hash of the action's canonical JSON form.
func HashAction(a Action) (Hash, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return Hash{}, fmt.Errorf("encoding action: %w", err)
	}
	return HashBytes(b), nil
}

// SignedActionHashed is an action together with its content hash and the
// author's signature. Signatures are carried but not verified.
type SignedActionHashed struct {
	Hash      Hash   `json:"hash"`
	Action    Action `json:"action"`
	Signature []byte `json:"signature,omitempty"`
}

// NewSignedActionHashed hashes a and wraps it with sig.
func NewSignedActionHashed(a Action, sig []byte) (SignedActionHashed, error) {
	h, err := HashAction(a)
	if err != nil {
		return SignedActionHashed{}, err
	}
	return SignedActionHashed{Hash: h, Action: a, Signature: sig}, nil
}

// VerifyHash recomputes the action hash and compares it with s.Hash.
func (s SignedActionHashed) VerifyHash() error {
	h, err := HashAction(s.Action)
	if err != nil {
		return err
	}
	if h != s.Hash {
		return fmt.Errorf("%w: stored %s, computed %s", ErrHashMismatch, s.Hash.Short(), h.Short())
	}
	return nil
}
