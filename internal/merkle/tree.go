package merkle

import (
	"fmt"

	"github.com/jmerrifield20/commitcore/internal/digest"
)

// Tree retains every layer of a Merkle tree so inclusion proofs can be
// produced. layers[0] holds the leaves and the last layer holds the root.
type Tree struct {
	layers [][]digest.Hash
}

// Step is one level of an inclusion proof.
type Step struct {
	Sibling digest.Hash `json:"sibling"`
	// Left is true when Sibling is the left operand of the parent hash.
	Left bool `json:"left"`
}

// Proof shows that the leaf at Index is committed to by a root.
type Proof struct {
	Index int    `json:"index"`
	Steps []Step `json:"steps"`
}

// Build constructs the full tree over txs.
func Build(txs []digest.Hashable, opts ...Option) (*Tree, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyCommitment
	}
	o := newOptions(opts)
	layer := hashLeaves(txs, o)
	layers := [][]digest.Hash{layer}
	for len(layer) > 1 {
		layer = nextLayer(layer, o)
		layers = append(layers, layer)
	}
	return &Tree{layers: layers}, nil
}

// Root returns the tree's root.
func (t *Tree) Root() Root {
	return Root(t.layers[len(t.layers)-1][0])
}

// Leaves returns a copy of the leaf digests.
func (t *Tree) Leaves() []digest.Hash {
	out := make([]digest.Hash, len(t.layers[0]))
	copy(out, t.layers[0])
	return out
}

// Depth returns the number of hashing levels above the leaves.
func (t *Tree) Depth() int { return len(t.layers) - 1 }

// Proof returns the inclusion proof for the leaf at index.
func (t *Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= len(t.layers[0]) {
		return Proof{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(t.layers[0]))
	}
	p := Proof{Index: index, Steps: make([]Step, 0, t.Depth())}
	idx := index
	for _, layer := range t.layers[:len(t.layers)-1] {
		var step Step
		if idx%2 == 1 {
			step = Step{Sibling: layer[idx-1], Left: true}
		} else if idx+1 < len(layer) {
			step = Step{Sibling: layer[idx+1]}
		} else {
			step = Step{Sibling: layer[idx]}
		}
		p.Steps = append(p.Steps, step)
		idx /= 2
	}
	return p, nil
}

// VerifyProof reports whether leaf, combined with the proof path, hashes up
// to root. The sibling sides must agree with the bits of p.Index.
func VerifyProof(root Root, leaf digest.Hash, p Proof) bool {
	if p.Index < 0 {
		return false
	}
	h := leaf
	idx := p.Index
	for _, s := range p.Steps {
		if s.Left != (idx%2 == 1) {
			return false
		}
		idx /= 2
		if s.Left {
			h = digest.SumHashes(s.Sibling, h)
		} else {
			h = digest.SumHashes(h, s.Sibling)
		}
	}
	return idx == 0 && Root(h) == root
}
