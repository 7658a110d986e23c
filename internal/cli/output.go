package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// parseHash parses a hex action hash argument.
func parseHash(s string) (types.Hash, error) {
	h, err := types.ParseHash(s)
	if err != nil {
		return types.Hash{}, userErrorf("%q is not an action hash: %w", s, err)
	}
	return h, nil
}

// parseAddress accepts a hex hash or any other string, which is hashed to
// form an address. This lets link bases and targets be named freely.
func parseAddress(s string) types.Hash {
	if h, err := types.ParseHash(s); err == nil {
		return h
	}
	return types.HashBytes([]byte(s))
}

// parseTypeRange parses "zome:from-to", "zome:type", or "from-to" (zome 0).
func parseTypeRange(s string) (types.LinkTypeRange, error) {
	var r types.LinkTypeRange
	rest := s
	if zome, rng, ok := strings.Cut(s, ":"); ok {
		z, err := parseUint8(zome)
		if err != nil {
			return r, userErrorf("type range %q: zome: %w", s, err)
		}
		r.ZomeIndex = z
		rest = rng
	}

	from, to, isRange := strings.Cut(rest, "-")
	lo, err := parseUint8(from)
	if err != nil {
		return r, userErrorf("type range %q: %w", s, err)
	}
	hi := lo
	if isRange {
		if hi, err = parseUint8(to); err != nil {
			return r, userErrorf("type range %q: %w", s, err)
		}
	}
	if hi < lo {
		return r, userErrorf("type range %q: upper bound below lower bound", s)
	}
	r.From, r.To = types.LinkType(lo), types.LinkType(hi)
	return r, nil
}

func parseUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}
