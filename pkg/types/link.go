package types

import (
	"encoding/hex"
	"strings"
)

// LinkType identifies a link kind within a zome.
type LinkType uint8

// LinkTag is opaque application data attached to a link.
type LinkTag []byte

// Hex returns the upper-case hex encoding used for tag prefix matching.
func (t LinkTag) Hex() string {
	return strings.ToUpper(hex.EncodeToString(t))
}

// CreateLink adds a directed edge from BaseAddress to TargetAddress.
type CreateLink struct {
	BaseAddress   Hash     `json:"base_address"`
	TargetAddress Hash     `json:"target_address"`
	ZomeIndex     uint8    `json:"zome_index"`
	LinkType      LinkType `json:"link_type"`
	Tag           LinkTag  `json:"tag"`
}

// DeleteLink retracts the link created by the action at LinkAddAddress.
type DeleteLink struct {
	BaseAddress    Hash `json:"base_address"`
	LinkAddAddress Hash `json:"link_add_address"`
}

// LinkTypeRange is an inclusive range of link types within one zome.
type LinkTypeRange struct {
	ZomeIndex uint8    `json:"zome_index"`
	From      LinkType `json:"from"`
	To        LinkType `json:"to"`
}

// Contains reports whether the link type falls inside the range.
func (r LinkTypeRange) Contains(zome uint8, t LinkType) bool {
	return r.ZomeIndex == zome && r.From <= t && t <= r.To
}

// LinkTypeRanges is a union of link type ranges. An empty union matches
// nothing.
type LinkTypeRanges []LinkTypeRange

// Contains reports whether any range contains the link type.
func (rs LinkTypeRanges) Contains(zome uint8, t LinkType) bool {
	for _, r := range rs {
		if r.Contains(zome, t) {
			return true
		}
	}
	return false
}
