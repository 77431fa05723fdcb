// Package gitlib is the repository handle of vcsmeta: a thin, typed layer over
// libgit2 (through git2go) that resolves references, looks up objects, walks
// trees, computes tree diffs, scans status and performs checkouts.
package gitlib

import (
	"encoding/hex"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

const (
	// HashSize is the size of a SHA-1 object id in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded SHA-1 object id.
	HashHexSize = 40
	// shortHashSize is the abbreviation length used for display.
	shortHashSize = 7
)

// Hash is a content-addressed git object id.
type Hash [HashSize]byte

// ParseHash decodes a full 40-character hex object id.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if len(s) != HashHexSize {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash. A nil oid yields the zero hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	if oid != nil {
		copy(h[:], oid[:])
	}

	return h
}

// String returns the lowercase hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex form used in listings.
func (h Hash) Short() string {
	return h.String()[:shortHashSize]
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts the hash back to a libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
