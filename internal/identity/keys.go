package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/jmerrifield20/commitcore/internal/digest"
)

const (
	// PrivateKeySize is the length of a raw private scalar.
	PrivateKeySize = 32
	// PublicKeySize is the length of a compressed SEC1 point.
	PublicKeySize = secp256k1.PubKeyBytesLenCompressed
	// SignatureSize is the length of an r||s encoded signature.
	SignatureSize = 64
)

var (
	// ErrInvalidKeyEncoding is returned when private key bytes have the wrong
	// length or do not encode a scalar in [1, N-1].
	ErrInvalidKeyEncoding = errors.New("identity: invalid private key encoding")
	// ErrInvalidPublicKeyEncoding is returned for bytes that are not a
	// compressed point on the curve.
	ErrInvalidPublicKeyEncoding = errors.New("identity: invalid public key encoding")
	// ErrInvalidSignatureEncoding is returned for bytes that are not a
	// 64-byte r||s pair with both components in [1, N-1].
	ErrInvalidSignatureEncoding = errors.New("identity: invalid signature encoding")
)

// PrivateKey is a secp256k1 secret scalar. It deliberately has no equality
// method and never prints its contents.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey draws a new private key from the operating system CSPRNG.
func GenerateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// GenerateKeyFromReader draws a new private key from rand.
func GenerateKeyFromReader(rand io.Reader) (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKeyFromRand(rand)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// PrivateKeyFromBytes decodes a raw 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyEncoding, PrivateKeySize, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidKeyEncoding)
	}
	if s.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKeyEncoding)
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// ParsePrivateKey decodes a hex-encoded private key.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	return PrivateKeyFromBytes(b)
}

// PublicKey derives the public key. The result is identical on every call.
func (k *PrivateKey) PublicKey() PublicKey {
	var pub PublicKey
	copy(pub.point[:], k.key.PubKey().SerializeCompressed())
	return pub
}

// Sign produces an ECDSA signature over d. The nonce is derived from the key
// and digest per RFC 6979, so signing the same digest twice yields the same
// bytes.
func (k *PrivateKey) Sign(d digest.Hash) Signature {
	sig := ecdsa.Sign(k.key, d[:])
	r, s := sig.R(), sig.S()
	rb, sb := r.Bytes(), s.Bytes()
	var out Signature
	copy(out.rs[:32], rb[:])
	copy(out.rs[32:], sb[:])
	return out
}

// Bytes returns the raw 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// Zero clears the key material. The key must not be used afterwards.
func (k *PrivateKey) Zero() {
	k.key.Zero()
}

// String implements fmt.Stringer without revealing the scalar.
func (k *PrivateKey) String() string { return "identity.PrivateKey(redacted)" }

// GoString implements fmt.GoStringer without revealing the scalar.
func (k *PrivateKey) GoString() string { return k.String() }

// UnmarshalText implements encoding.TextUnmarshaler for hex input.
func (k *PrivateKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePrivateKey(string(text))
	if err != nil {
		return err
	}
	*k = *parsed
	return nil
}

// SignOutput signs an output digest with key. It is Sign with the arguments
// in (digest, key) order.
func SignOutput(d digest.Hash, key *PrivateKey) Signature {
	return key.Sign(d)
}

// PublicKey is a secp256k1 point held in its compressed encoding. Two public
// keys are equal exactly when they encode the same point, so == is valid.
type PublicKey struct {
	point [PublicKeySize]byte
}

// PublicKeyFromBytes decodes a 33-byte compressed point.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != PublicKeySize {
		return pub, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidPublicKeyEncoding, PublicKeySize, len(b))
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return pub, fmt.Errorf("%w: %v", ErrInvalidPublicKeyEncoding, err)
	}
	copy(pub.point[:], b)
	return pub, nil
}

// ParsePublicKey decodes a hex-encoded compressed point.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKeyEncoding, err)
	}
	return PublicKeyFromBytes(b)
}

// Bytes returns the compressed encoding.
func (p PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, p.point[:])
	return out
}

// Equal reports whether p and o are the same point.
func (p PublicKey) Equal(o PublicKey) bool { return p == o }

// IsZero reports whether p is the zero value, which is not a valid key.
func (p PublicKey) IsZero() bool { return p == PublicKey{} }

// String returns the hex encoding of the compressed point.
func (p PublicKey) String() string { return hex.EncodeToString(p.point[:]) }

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PublicKey) parse() (*secp256k1.PublicKey, bool) {
	pub, err := secp256k1.ParsePubKey(p.point[:])
	if err != nil {
		return nil, false
	}
	return pub, true
}

// Signature is an ECDSA (r, s) pair.
type Signature struct {
	rs [SignatureSize]byte
}

// SignatureFromBytes decodes a 64-byte r||s pair.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignatureEncoding, SignatureSize, len(b))
	}
	copy(sig.rs[:], b)
	if _, ok := sig.parse(); !ok {
		return Signature{}, fmt.Errorf("%w: r or s out of range", ErrInvalidSignatureEncoding)
	}
	return sig, nil
}

// ParseSignature decodes a hex-encoded r||s pair.
func ParseSignature(s string) (Signature, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}
	return SignatureFromBytes(b)
}

// Verify reports whether sig is a valid signature of d under pub. It never
// fails: a wrong key, wrong digest or malformed signature is simply false.
func (sig Signature) Verify(d digest.Hash, pub PublicKey) bool {
	parsed, ok := sig.parse()
	if !ok {
		return false
	}
	key, ok := pub.parse()
	if !ok {
		return false
	}
	return parsed.Verify(d[:], key)
}

// Bytes returns the r||s encoding.
func (sig Signature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, sig.rs[:])
	return out
}

// Equal reports whether sig and o have identical encodings.
func (sig Signature) Equal(o Signature) bool { return sig == o }

// String returns the hex encoding of r||s.
func (sig Signature) String() string { return hex.EncodeToString(sig.rs[:]) }

// MarshalText implements encoding.TextMarshaler.
func (sig Signature) MarshalText() ([]byte, error) {
	return []byte(sig.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (sig *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*sig = parsed
	return nil
}

func (sig Signature) parse() (*ecdsa.Signature, bool) {
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig.rs[:32]) || r.IsZero() {
		return nil, false
	}
	if s.SetByteSlice(sig.rs[32:]) || s.IsZero() {
		return nil, false
	}
	return ecdsa.NewSignature(&r, &s), true
}

// VerifyEncoded decodes wire-format signature, digest and public key bytes
// and verifies them. Any decoding failure yields false.
func VerifyEncoded(sig, d, pub []byte) bool {
	s, err := SignatureFromBytes(sig)
	if err != nil {
		return false
	}
	h, err := digest.FromBytes(d)
	if err != nil {
		return false
	}
	p, err := PublicKeyFromBytes(pub)
	if err != nil {
		return false
	}
	return s.Verify(h, p)
}
