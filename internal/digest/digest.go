// Package digest defines the fixed-width Hash used by the identity and merkle
// packages, and the Hashable contract transactions satisfy to be committed.
//
// Hash is a SHA-256 digest. Internal Merkle nodes are the SHA-256 of the
// concatenation of their children (see SumHashes).
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Size is the byte width of a Hash.
const Size = sha256.Size

// ErrInvalidHash is returned when bytes or text cannot be decoded into a Hash.
var ErrInvalidHash = errors.New("digest: invalid hash encoding")

// Hash is a SHA-256 digest. It is comparable with ==.
type Hash [Size]byte

// Hashable is implemented by anything that supplies a canonical byte
// representation for hashing, such as a ledger transaction.
type Hashable interface {
	CanonicalBytes() []byte
}

// Bytes adapts a raw byte slice to Hashable.
type Bytes []byte

// CanonicalBytes implements Hashable.
func (b Bytes) CanonicalBytes() []byte { return b }

// Sum returns the SHA-256 digest of data.
func Sum(data []byte) Hash {
	return sha256.Sum256(data)
}

// SumHashes returns the digest of the concatenation of hs.
func SumHashes(hs ...Hash) Hash {
	h := sha256.New()
	for i := range hs {
		_, _ = h.Write(hs[i][:])
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// Of returns the digest of v's canonical bytes.
func Of(v Hashable) Hash {
	return Sum(v.CanonicalBytes())
}

// FromBytes copies b into a Hash. b must be exactly Size bytes.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHash, Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Parse decodes a hex-encoded Hash.
func Parse(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return FromBytes(b)
}

// Bytes returns a copy of the digest bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// String returns the lowercase hex encoding of h.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// CID renders h as a CIDv1 with the raw codec and a sha2-256 multihash.
// For a leaf this is the content identifier of the transaction bytes.
func (h Hash) CID() string {
	mh, err := multihash.Encode(h[:], multihash.SHA2_256)
	if err != nil {
		// Encode only fails for unknown codes or bad lengths.
		return ""
	}
	return cid.NewCidV1(cid.Raw, mh).String()
}
