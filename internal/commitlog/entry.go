package commitlog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/jmerrifield20/commitcore/internal/merkle"
)

// GenesisHash is the canonical well-known hash of the genesis entry.
// It serves as the trust anchor of the chain; all subsequent entry hashes
// chain from this constant rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	ErrBadSignature  = errors.New("commitlog: commitment signature does not verify")
	ErrEmptyBatch    = errors.New("commitlog: commitment covers no transactions")
	ErrMissingSigner = errors.New("commitlog: commitment has no signer")
	ErrNotFound      = errors.New("commitlog: entry not found")
)

// genesisTime is fixed so every replica derives the same genesis entry.
var genesisTime = time.Unix(0, 0).UTC()

// Commitment is a signed statement that Root commits to a batch of TxCount
// transactions.
type Commitment struct {
	Root      merkle.Root        `json:"root"`
	TxCount   int                `json:"tx_count"`
	Signer    identity.PublicKey `json:"signer"`
	Signature identity.Signature `json:"signature"`
}

// Validate checks that the commitment is well-formed and its signature
// verifies over Root under Signer.
func (c Commitment) Validate() error {
	if c.TxCount < 1 {
		return ErrEmptyBatch
	}
	if c.Signer.IsZero() {
		return ErrMissingSigner
	}
	if !c.Signature.Verify(c.Root.Hash(), c.Signer) {
		return ErrBadSignature
	}
	return nil
}

// Entry is a single record in the commitment log.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root"`
	TxCount   int       `json:"tx_count"`
	Signer    string    `json:"signer"`    // hex compressed public key
	Signature string    `json:"signature"` // hex r||s
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Commitment decodes the signed commitment carried by a non-genesis entry.
func (e *Entry) Commitment() (Commitment, error) {
	var c Commitment
	root, err := digest.Parse(e.Root)
	if err != nil {
		return c, fmt.Errorf("entry %d root: %w", e.Index, err)
	}
	signer, err := identity.ParsePublicKey(e.Signer)
	if err != nil {
		return c, fmt.Errorf("entry %d signer: %w", e.Index, err)
	}
	sig, err := identity.ParseSignature(e.Signature)
	if err != nil {
		return c, fmt.Errorf("entry %d signature: %w", e.Index, err)
	}
	return Commitment{Root: merkle.Root(root), TxCount: e.TxCount, Signer: signer, Signature: sig}, nil
}

func genesisEntry() *Entry {
	return &Entry{
		Index:     0,
		Timestamp: genesisTime,
		Root:      GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash, // genesis hash is the well-known constant, not computed
	}
}

// newEntry builds the entry for c following prev. Timestamps are truncated
// to microseconds, the precision PostgreSQL stores.
func newEntry(prev *Entry, c Commitment, now time.Time) *Entry {
	e := &Entry{
		Index:     prev.Index + 1,
		Timestamp: now.UTC().Truncate(time.Microsecond),
		Root:      c.Root.String(),
		TxCount:   c.TxCount,
		Signer:    c.Signer.String(),
		Signature: c.Signature.String(),
		PrevHash:  prev.Hash,
	}
	e.Hash = hashEntry(e)
	return e
}

// hashEntry computes a deterministic SHA-256 hash over an entry's fields.
// This function must never be called on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|%s|%s|%s",
		e.Index, e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Root, e.TxCount, e.Signer, e.Signature, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// checkLink validates curr against its predecessor: the chain link, the
// entry hash and the commitment signature.
func checkLink(prev, curr *Entry) error {
	if curr.Index != prev.Index+1 {
		return fmt.Errorf("index gap at %d (previous %d)", curr.Index, prev.Index)
	}
	if curr.PrevHash != prev.Hash {
		return fmt.Errorf("hash chain broken at index %d", curr.Index)
	}
	if curr.Hash != hashEntry(curr) {
		return fmt.Errorf("entry %d has invalid hash", curr.Index)
	}
	c, err := curr.Commitment()
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("entry %d: %w", curr.Index, err)
	}
	return nil
}

// checkGenesis validates the genesis entry against the well-known constant.
func checkGenesis(e *Entry) error {
	if e.Index != 0 || e.Hash != GenesisHash {
		return fmt.Errorf("genesis entry has wrong hash: got %q", e.Hash)
	}
	return nil
}
