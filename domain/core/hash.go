package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough for log lines
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// SelectionHash fingerprints a facet selection independent of map order
type SelectionHash Hash

func (h SelectionHash) String() string { return Hash(h).String() }

// ComputeSelectionHash hashes facet -> rendered values. Facets and values are
// sorted first so equal selections always hash identically.
func ComputeSelectionHash(facets map[string][]string) SelectionHash {
	keys := make([]string, 0, len(facets))
	for k := range facets {
		if len(facets[k]) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		values := append([]string(nil), facets[key]...)
		sort.Strings(values)
		data.WriteString(key)
		data.WriteByte('=')
		data.WriteString(strings.Join(values, "\x1f"))
		data.WriteByte('\x1e')
	}

	return SelectionHash(NewHash([]byte(data.String())))
}
