// Package merkle computes Merkle roots over ordered transaction batches.
//
// Leaves are the digests of each transaction in input order. Each layer is
// reduced by hashing adjacent pairs; an odd trailing node is paired with
// itself rather than promoted, so every layer halves (rounding up) and the
// tree depth is ceil(log2(n)).
package merkle

import (
	"errors"

	"github.com/jmerrifield20/commitcore/internal/digest"
)

var (
	// ErrEmptyCommitment is returned when a root is requested for zero
	// transactions. No root exists for an empty batch.
	ErrEmptyCommitment = errors.New("merkle: empty commitment")
	// ErrIndexOutOfRange is returned when a proof is requested for a leaf
	// index outside the tree.
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
)

// Root is the apex digest of a Merkle tree.
type Root digest.Hash

// Hash returns r as a digest.Hash, e.g. for signing.
func (r Root) Hash() digest.Hash { return digest.Hash(r) }

// String returns the hex encoding of r.
func (r Root) String() string { return digest.Hash(r).String() }

// CID renders r as a CIDv1 content identifier.
func (r Root) CID() string { return digest.Hash(r).CID() }

// MarshalText implements encoding.TextMarshaler.
func (r Root) MarshalText() ([]byte, error) { return digest.Hash(r).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Root) UnmarshalText(text []byte) error {
	return (*digest.Hash)(r).UnmarshalText(text)
}

// ComputeRoot returns the Merkle root of txs. It fails with
// ErrEmptyCommitment when txs is empty.
func ComputeRoot(txs []digest.Hashable, opts ...Option) (Root, error) {
	if len(txs) == 0 {
		return Root{}, ErrEmptyCommitment
	}
	o := newOptions(opts)
	return reduce(hashLeaves(txs, o), o), nil
}

// ComputeRootFromLeaves returns the Merkle root over precomputed leaf
// digests. It fails with ErrEmptyCommitment when leaves is empty.
func ComputeRootFromLeaves(leaves []digest.Hash, opts ...Option) (Root, error) {
	if len(leaves) == 0 {
		return Root{}, ErrEmptyCommitment
	}
	layer := make([]digest.Hash, len(leaves))
	copy(layer, leaves)
	return reduce(layer, newOptions(opts)), nil
}

func hashLeaves(txs []digest.Hashable, o options) []digest.Hash {
	leaves := make([]digest.Hash, len(txs))
	o.forEach(len(txs), func(i int) {
		leaves[i] = digest.Of(txs[i])
	})
	return leaves
}

func reduce(layer []digest.Hash, o options) Root {
	for len(layer) > 1 {
		layer = nextLayer(layer, o)
	}
	return Root(layer[0])
}

// nextLayer pairs adjacent nodes, duplicating the last node of an odd layer.
func nextLayer(layer []digest.Hash, o options) []digest.Hash {
	next := make([]digest.Hash, (len(layer)+1)/2)
	o.forEach(len(next), func(k int) {
		left := layer[2*k]
		right := left
		if 2*k+1 < len(layer) {
			right = layer[2*k+1]
		}
		next[k] = digest.SumHashes(left, right)
	})
	return next
}
