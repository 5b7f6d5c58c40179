package commitlog

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/jmerrifield20/commitcore/internal/merkle"
)

// NewCommitment computes the Merkle root of txs and signs it with key.
func NewCommitment(key *identity.PrivateKey, txs []digest.Hashable, opts ...merkle.Option) (Commitment, error) {
	root, err := merkle.ComputeRoot(txs, opts...)
	if err != nil {
		return Commitment{}, fmt.Errorf("compute root: %w", err)
	}
	return Commitment{
		Root:      root,
		TxCount:   len(txs),
		Signer:    key.PublicKey(),
		Signature: key.Sign(root.Hash()),
	}, nil
}

// Seal commits txs with key and appends the commitment to log.
func Seal(ctx context.Context, log Log, key *identity.PrivateKey, txs []digest.Hashable, opts ...merkle.Option) (*Entry, error) {
	c, err := NewCommitment(key, txs, opts...)
	if err != nil {
		return nil, err
	}
	entry, err := log.Append(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("append commitment: %w", err)
	}
	return entry, nil
}
