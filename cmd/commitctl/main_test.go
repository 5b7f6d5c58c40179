package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/commitcore/internal/api"
	"github.com/jmerrifield20/commitcore/internal/commitlog"
	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/jmerrifield20/commitcore/internal/merkle"
	"go.uber.org/zap"
)

// execute runs commitctl with args against an isolated home directory.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("COMMITCTL_PASSPHRASE", "")
	t.Setenv("COMMITCTL_TOKEN", "")
	t.Setenv("COMMITCTL_TOKEN_SECRET", "")
	return home
}

func field(t *testing.T, out, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q line in output:\n%s", prefix, out)
	return ""
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "commitctl dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestKeygenPubkeySignVerify(t *testing.T) {
	isolate(t)
	keyDir := t.TempDir()

	out, err := execute(t, "", "keygen", "--key-dir", keyDir, "--name", "alice")
	if err != nil {
		t.Fatal(err)
	}
	pub := field(t, out, "public_key:")

	out, err = execute(t, "", "pubkey", "--key-dir", keyDir, "--name", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != pub {
		t.Errorf("pubkey: got %q, want %q", out, pub)
	}

	if _, err := execute(t, "", "keygen", "--key-dir", keyDir, "--name", "alice"); err == nil {
		t.Error("keygen should refuse to overwrite an existing key")
	}

	d := digest.Sum([]byte("hello")).String()
	out, err = execute(t, "", "sign", "--key-dir", keyDir, "--name", "alice", "--digest", d)
	if err != nil {
		t.Fatal(err)
	}
	sig := strings.TrimSpace(out)

	out, err = execute(t, "", "verify", "--digest", d, "--sig", sig, "--pubkey", pub)
	if err != nil || strings.TrimSpace(out) != "valid" {
		t.Fatalf("verify: out=%q err=%v", out, err)
	}

	other := digest.Sum([]byte("bye")).String()
	out, err = execute(t, "", "verify", "--digest", other, "--sig", sig, "--pubkey", pub)
	if !errors.Is(err, errInvalidSignature) || strings.TrimSpace(out) != "invalid" {
		t.Fatalf("verify wrong digest: out=%q err=%v", out, err)
	}

	out, err = execute(t, "", "verify", "--digest", d, "--sig", "zz", "--pubkey", pub)
	if !errors.Is(err, errInvalidSignature) {
		t.Fatalf("verify malformed sig: out=%q err=%v", out, err)
	}

	out, err = execute(t, "", "keygen", "--key-dir", keyDir, "--list")
	if err != nil || strings.TrimSpace(out) != "alice" {
		t.Fatalf("list: out=%q err=%v", out, err)
	}
}

func TestKeygen_importAndSealed(t *testing.T) {
	isolate(t)
	t.Setenv("COMMITCTL_PASSPHRASE", "hunter2")
	keyDir := t.TempDir()

	key, _ := identity.GenerateKey()
	hexKey := hex.EncodeToString(key.Bytes())

	if _, err := execute(t, "", "keygen", "--key-dir", keyDir, "--name", "imported", "--import", hexKey); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "pubkey", "--key-dir", keyDir, "--name", "imported")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != key.PublicKey().String() {
		t.Errorf("imported pubkey mismatch")
	}

	t.Setenv("COMMITCTL_PASSPHRASE", "wrong")
	if _, err := execute(t, "", "pubkey", "--key-dir", keyDir, "--name", "imported"); !errors.Is(err, identity.ErrWrongPassphrase) {
		t.Errorf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestKeygen_stdout(t *testing.T) {
	isolate(t)
	out, err := execute(t, "", "keygen", "--stdout")
	if err != nil {
		t.Fatal(err)
	}
	priv, err := identity.ParsePrivateKey(field(t, out, "private_key:"))
	if err != nil {
		t.Fatal(err)
	}
	if priv.PublicKey().String() != field(t, out, "public_key:") {
		t.Error("printed public key does not match private key")
	}
}

func TestSign_file(t *testing.T) {
	isolate(t)
	keyDir := t.TempDir()
	if _, err := execute(t, "", "keygen", "--key-dir", keyDir); err != nil {
		t.Fatal(err)
	}
	path := t.TempDir() + "/payload"
	if err := os.WriteFile(path, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "sign", "--key-dir", keyDir, "--file", path)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := identity.ParseSignature(strings.TrimSpace(out))
	if err != nil {
		t.Fatal(err)
	}
	pubOut, _ := execute(t, "", "pubkey", "--key-dir", keyDir)
	pub, _ := identity.ParsePublicKey(strings.TrimSpace(pubOut))
	if !sig.Verify(digest.Sum([]byte("payload")), pub) {
		t.Error("file signature does not verify over SHA-256 of contents")
	}
}

func TestRoot(t *testing.T) {
	isolate(t)
	want, _ := merkle.ComputeRoot([]digest.Hashable{digest.Bytes("a"), digest.Bytes("b"), digest.Bytes("c")})

	out, err := execute(t, "", "root", "a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != want.String() {
		t.Errorf("args: got %s, want %s", out, want)
	}

	out, err = execute(t, "a\nb\r\n\nc\n", "root")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != want.String() {
		t.Errorf("stdin: got %s, want %s", out, want)
	}

	out, err = execute(t, "", "root", "--hex", "61", "62", "63")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != want.String() {
		t.Errorf("hex: got %s, want %s", out, want)
	}

	if _, err := execute(t, "", "root"); !errors.Is(err, merkle.ErrEmptyCommitment) {
		t.Errorf("empty batch: expected ErrEmptyCommitment, got %v", err)
	}
}

func TestProof(t *testing.T) {
	isolate(t)
	out, err := execute(t, "", "proof", "--index", "2", "a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Root  merkle.Root  `json:"root"`
		Leaf  digest.Hash  `json:"leaf"`
		Proof merkle.Proof `json:"proof"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if !merkle.VerifyProof(resp.Root, resp.Leaf, resp.Proof) {
		t.Error("printed proof does not verify")
	}

	if _, err := execute(t, "", "proof", "--index", "3", "a", "b", "c"); !errors.Is(err, merkle.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestToken(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "", "token"); err == nil {
		t.Fatal("expected error without token secret")
	}

	t.Setenv("COMMITCTL_TOKEN_SECRET", "s3cret")
	out, err := execute(t, "", "token", "--subject", "ci")
	if err != nil {
		t.Fatal(err)
	}
	issuer := identity.NewTokenIssuer([]byte("s3cret"), "commitd", 0)
	claims, err := issuer.RequireScope(strings.TrimSpace(out), identity.ScopeCommit)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "ci" {
		t.Errorf("subject: got %q", claims.Subject)
	}
}

func TestRemote(t *testing.T) {
	isolate(t)
	gin.SetMode(gin.TestMode)

	key, _ := identity.GenerateKey()
	log := commitlog.NewMemoryLog()
	tokens := identity.NewTokenIssuer([]byte("remote-secret"), "commitd", 0)
	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{}, zap.NewNop(),
		api.NewMerkleHandler(1),
		api.NewLedgerHandler(log, zap.NewNop()),
		api.NewCommitHandler(key, log, tokens, 1, zap.NewNop()),
	))
	defer srv.Close()

	out, err := execute(t, "", "remote", "root", "--server", srv.URL, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := merkle.ComputeRoot([]digest.Hashable{digest.Bytes("a"), digest.Bytes("b")})
	if strings.TrimSpace(out) != want.String() {
		t.Errorf("remote root: got %s, want %s", out, want)
	}

	if _, err := execute(t, "", "remote", "commit", "--server", srv.URL, "a"); err == nil {
		t.Fatal("remote commit without a token should fail")
	}

	tok, _ := tokens.Issue("cli", []string{identity.ScopeCommit})
	t.Setenv("COMMITCTL_TOKEN", tok)
	out, err = execute(t, "", "remote", "commit", "--server", srv.URL, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	var entry commitlog.Entry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Index != 1 || entry.Root != want.String() {
		t.Errorf("entry: %+v", entry)
	}

	out, err = execute(t, "", "remote", "ledger", "--server", srv.URL, "--verify")
	if err != nil || strings.TrimSpace(out) != "ok" {
		t.Fatalf("ledger --verify: out=%q err=%v", out, err)
	}

	out, err = execute(t, "", "remote", "ledger", "--server", srv.URL)
	if err != nil || !strings.Contains(out, entry.Hash) {
		t.Fatalf("ledger: out=%q err=%v", out, err)
	}
}
