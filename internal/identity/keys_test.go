package identity_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func newTestKey(t *testing.T) *identity.PrivateKey {
	t.Helper()
	k, err := identity.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	return k
}

func TestGenerateKey_distinct(t *testing.T) {
	k1 := newTestKey(t)
	k2 := newTestKey(t)
	if bytes.Equal(k1.Bytes(), k2.Bytes()) {
		t.Error("two generated keys must not share a scalar")
	}
	if k1.PublicKey() == k2.PublicKey() {
		t.Error("two generated keys must not share a public key")
	}
}

func TestGenerateKeyFromReader_deterministic(t *testing.T) {
	k1, err := identity.GenerateKeyFromReader(&deterministicReader{})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := identity.GenerateKeyFromReader(&deterministicReader{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1.Bytes(), k2.Bytes()) {
		t.Error("same entropy stream should produce the same key")
	}
}

func TestPublicKey_derivationIsPure(t *testing.T) {
	k := newTestKey(t)
	if k.PublicKey() != k.PublicKey() {
		t.Error("PublicKey() returned different values for the same key")
	}
	if !k.PublicKey().Equal(k.PublicKey()) {
		t.Error("Equal() should hold for the same derivation")
	}
}

func TestSign_verifies(t *testing.T) {
	k := newTestKey(t)
	for _, msg := range []string{"", "tx", "a much longer transaction payload"} {
		h := digest.Sum([]byte(msg))
		sig := k.Sign(h)
		if !sig.Verify(h, k.PublicKey()) {
			t.Errorf("signature over %q did not verify", msg)
		}
	}
}

func TestSign_deterministic(t *testing.T) {
	k := newTestKey(t)
	h := digest.Sum([]byte("same digest"))

	s1 := k.Sign(h)
	s2 := k.Sign(h)
	if !bytes.Equal(s1.Bytes(), s2.Bytes()) {
		t.Errorf("signing twice produced different bytes:\n%s\n%s", s1, s2)
	}
	if s3 := identity.SignOutput(h, k); s3 != s1 {
		t.Error("SignOutput should match Sign")
	}
}

func TestVerify_keySeparation(t *testing.T) {
	k1 := newTestKey(t)
	k2 := newTestKey(t)
	h := digest.Sum([]byte("tx"))

	if k1.Sign(h).Verify(h, k2.PublicKey()) {
		t.Error("signature verified under an unrelated key")
	}
}

func TestVerify_digestBinding(t *testing.T) {
	k := newTestKey(t)
	h1 := digest.Sum([]byte("tx-1"))
	h2 := digest.Sum([]byte("tx-2"))

	sig := k.Sign(h1)
	if !sig.Verify(h1, k.PublicKey()) {
		t.Fatal("signature should verify over its own digest")
	}
	if sig.Verify(h2, k.PublicKey()) {
		t.Error("signature verified over a different digest")
	}
}

func TestVerify_zeroValuesAreFalse(t *testing.T) {
	k := newTestKey(t)
	h := digest.Sum([]byte("tx"))

	var zeroSig identity.Signature
	if zeroSig.Verify(h, k.PublicKey()) {
		t.Error("zero signature must not verify")
	}
	var zeroPub identity.PublicKey
	if k.Sign(h).Verify(h, zeroPub) {
		t.Error("signature must not verify under the zero public key")
	}
}

func TestVerifyEncoded(t *testing.T) {
	k := newTestKey(t)
	h := digest.Sum([]byte("wire"))
	sig := k.Sign(h)
	pub := k.PublicKey()

	tests := []struct {
		name string
		sig  []byte
		dig  []byte
		pub  []byte
		want bool
	}{
		{"valid", sig.Bytes(), h.Bytes(), pub.Bytes(), true},
		{"short signature", sig.Bytes()[:63], h.Bytes(), pub.Bytes(), false},
		{"short digest", sig.Bytes(), h.Bytes()[:31], pub.Bytes(), false},
		{"garbage key", sig.Bytes(), h.Bytes(), bytes.Repeat([]byte{0x07}, 33), false},
		{"nil everything", nil, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identity.VerifyEncoded(tt.sig, tt.dig, tt.pub); got != tt.want {
				t.Errorf("VerifyEncoded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrivateKey_roundTrip(t *testing.T) {
	k := newTestKey(t)
	decoded, err := identity.PrivateKeyFromBytes(k.Bytes())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), k.Bytes()) {
		t.Error("private key bytes changed across round trip")
	}
	if decoded.PublicKey() != k.PublicKey() {
		t.Error("decoded key derives a different public key")
	}
}

func TestPrivateKeyFromBytes_invalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 31)},
		{"long", make([]byte, 33)},
		{"zero scalar", make([]byte, 32)},
		{"above curve order", bytes.Repeat([]byte{0xff}, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.PrivateKeyFromBytes(tt.in)
			if !errors.Is(err, identity.ErrInvalidKeyEncoding) {
				t.Errorf("expected ErrInvalidKeyEncoding, got %v", err)
			}
		})
	}
}

func TestParsePrivateKey_badHex(t *testing.T) {
	if _, err := identity.ParsePrivateKey("not-hex"); !errors.Is(err, identity.ErrInvalidKeyEncoding) {
		t.Errorf("expected ErrInvalidKeyEncoding, got %v", err)
	}
}

func TestPublicKey_roundTrip(t *testing.T) {
	pub := newTestKey(t).PublicKey()
	if len(pub.Bytes()) != identity.PublicKeySize {
		t.Fatalf("compressed key length: got %d", len(pub.Bytes()))
	}
	decoded, err := identity.PublicKeyFromBytes(pub.Bytes())
	if err != nil {
		t.Fatalf("PublicKeyFromBytes() error: %v", err)
	}
	if decoded != pub {
		t.Error("public key changed across round trip")
	}

	parsed, err := identity.ParsePublicKey(pub.String())
	if err != nil {
		t.Fatalf("ParsePublicKey() error: %v", err)
	}
	if parsed != pub {
		t.Error("public key changed across hex round trip")
	}
}

func TestPublicKeyFromBytes_invalid(t *testing.T) {
	pub := newTestKey(t).PublicKey().Bytes()
	offCurve := append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...)

	for name, in := range map[string][]byte{
		"uncompressed length": make([]byte, 65),
		"truncated":           pub[:32],
		"bad prefix":          append([]byte{0x05}, pub[1:]...),
		"x out of field":      offCurve,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := identity.PublicKeyFromBytes(in)
			if !errors.Is(err, identity.ErrInvalidPublicKeyEncoding) {
				t.Errorf("expected ErrInvalidPublicKeyEncoding, got %v", err)
			}
		})
	}
}

func TestSignature_roundTrip(t *testing.T) {
	k := newTestKey(t)
	h := digest.Sum([]byte("tx"))
	sig := k.Sign(h)

	decoded, err := identity.SignatureFromBytes(sig.Bytes())
	if err != nil {
		t.Fatalf("SignatureFromBytes() error: %v", err)
	}
	if !decoded.Equal(sig) {
		t.Error("signature changed across round trip")
	}
	if !decoded.Verify(h, k.PublicKey()) {
		t.Error("decoded signature no longer verifies")
	}
}

func TestSignatureFromBytes_invalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"short", make([]byte, 63)},
		{"zero r and s", make([]byte, 64)},
		{"r above order", append(bytes.Repeat([]byte{0xff}, 32), bytes.Repeat([]byte{0x01}, 32)...)},
		{"s above order", append(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0xff}, 32)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := identity.SignatureFromBytes(tt.in)
			if !errors.Is(err, identity.ErrInvalidSignatureEncoding) {
				t.Errorf("expected ErrInvalidSignatureEncoding, got %v", err)
			}
		})
	}
}

func TestTextEncoding_JSON(t *testing.T) {
	k := newTestKey(t)
	h := digest.Sum([]byte("json"))

	type envelope struct {
		Signer    identity.PublicKey `json:"signer"`
		Signature identity.Signature `json:"signature"`
	}
	in := envelope{Signer: k.PublicKey(), Signature: k.Sign(h)}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("JSON round trip changed the envelope: %s", raw)
	}

	var decodedKey identity.PrivateKey
	if err := decodedKey.UnmarshalText([]byte(fmt.Sprintf("%x", k.Bytes()))); err != nil {
		t.Fatalf("PrivateKey.UnmarshalText() error: %v", err)
	}
	if decodedKey.PublicKey() != k.PublicKey() {
		t.Error("text-decoded private key derives a different public key")
	}
}

func TestPrivateKey_neverPrinted(t *testing.T) {
	k := newTestKey(t)
	secret := fmt.Sprintf("%x", k.Bytes())

	for _, verb := range []string{"%v", "%+v", "%#v", "%s"} {
		out := fmt.Sprintf(verb, k)
		if strings.Contains(out, secret) {
			t.Errorf("%s leaked the private scalar: %s", verb, out)
		}
	}
}
