package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	keyFileExt   = ".key"
	sealedPrefix = "sealed:v1:"

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltSize     = 16
)

var (
	ErrKeyNotFound         = errors.New("identity: key not found")
	ErrKeyExists           = errors.New("identity: key already exists")
	ErrInvalidKeyName      = errors.New("identity: invalid key name")
	ErrWrongPassphrase     = errors.New("identity: wrong passphrase")
	ErrPassphraseRequired  = errors.New("identity: key is sealed; passphrase required")
	errMalformedSealedFile = errors.New("malformed sealed key file")
)

// KeyStore persists named private keys as files in a directory.
//
// Plain keys are stored as a hex scalar. When a passphrase is supplied the
// scalar is sealed with XChaCha20-Poly1305 under an argon2id-derived key.
type KeyStore struct {
	dir string
}

// NewKeyStore returns a KeyStore rooted at dir. The directory is created on
// first write.
func NewKeyStore(dir string) *KeyStore {
	return &KeyStore{dir: dir}
}

// Dir returns the directory backing the store.
func (s *KeyStore) Dir() string { return s.dir }

// Create generates a new key under name. It fails with ErrKeyExists rather
// than overwrite an existing key.
func (s *KeyStore) Create(name, passphrase string) (*PrivateKey, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := s.Import(name, key, passphrase); err != nil {
		return nil, err
	}
	return key, nil
}

// Import stores an existing key under name.
func (s *KeyStore) Import(name string, key *PrivateKey, passphrase string) error {
	if err := checkKeyName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create key dir %q: %w", s.dir, err)
	}

	contents := hex.EncodeToString(key.Bytes())
	if passphrase != "" {
		sealed, err := seal(key.Bytes(), passphrase)
		if err != nil {
			return err
		}
		contents = sealed
	}

	f, err := os.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, name)
		}
		return fmt.Errorf("create key file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(contents + "\n"); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

// Load reads the key stored under name.
func (s *KeyStore) Load(name, passphrase string) (*PrivateKey, error) {
	if err := checkKeyName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}

	contents := strings.TrimSpace(string(data))
	if !strings.HasPrefix(contents, sealedPrefix) {
		return ParsePrivateKey(contents)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: %s", ErrPassphraseRequired, name)
	}
	raw, err := unseal(contents, passphrase)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromBytes(raw)
}

// LoadOrCreate loads the key under name, generating it when absent. created
// reports whether a new key was written.
func (s *KeyStore) LoadOrCreate(name, passphrase string) (key *PrivateKey, created bool, err error) {
	key, err = s.Load(name, passphrase)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, false, err
	}
	key, err = s.Create(name, passphrase)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// List returns the sorted names of all stored keys.
func (s *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read key dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), keyFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), keyFileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *KeyStore) path(name string) string {
	return filepath.Join(s.dir, name+keyFileExt)
}

func checkKeyName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKeyName)
	}
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("%w: invalid character %q", ErrInvalidKeyName, c)
	}
	return nil
}

// seal encrypts raw as "sealed:v1:<salt>:<nonce>:<ciphertext>", all hex.
func seal(raw []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveSealKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, raw, []byte(sealedPrefix))
	return sealedPrefix + strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(nonce),
		hex.EncodeToString(ct),
	}, ":"), nil
}

func unseal(contents, passphrase string) ([]byte, error) {
	parts := strings.Split(strings.TrimPrefix(contents, sealedPrefix), ":")
	if len(parts) != 3 {
		return nil, errMalformedSealedFile
	}
	var fields [3][]byte
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedSealedFile, err)
		}
		fields[i] = b
	}
	salt, nonce, ct := fields[0], fields[1], fields[2]

	aead, err := chacha20poly1305.NewX(deriveSealKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errMalformedSealedFile
	}
	raw, err := aead.Open(nil, nonce, ct, []byte(sealedPrefix))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return raw, nil
}

func deriveSealKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
