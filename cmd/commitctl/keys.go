package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/spf13/cobra"
)

func (c *cli) keyStore() *identity.KeyStore {
	return identity.NewKeyStore(c.v.GetString("key_dir"))
}

func (c *cli) loadKey(name string) (*identity.PrivateKey, error) {
	return c.keyStore().Load(name, c.v.GetString("passphrase"))
}

// ── keygen ───────────────────────────────────────────────────────────────────

func (c *cli) keygenCmd() *cobra.Command {
	var (
		name      string
		stdout    bool
		list      bool
		importHex string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signing key",
		Long: `keygen generates a secp256k1 private key and stores it in the key store
under --name. The public key is printed.

With --stdout the private key is printed as hex instead of being stored.
With --list the names of stored keys are printed.
With --import an existing hex private key is stored instead of a fresh one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				names, err := c.keyStore().List()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			if stdout {
				key, err := identity.GenerateKey()
				if err != nil {
					return err
				}
				defer key.Zero()
				fmt.Fprintf(out, "private_key: %x\npublic_key:  %s\n", key.Bytes(), key.PublicKey())
				return nil
			}

			var (
				key *identity.PrivateKey
				err error
			)
			if importHex != "" {
				key, err = identity.ParsePrivateKey(strings.TrimSpace(importHex))
				if err != nil {
					return err
				}
				err = c.keyStore().Import(name, key, c.v.GetString("passphrase"))
			} else {
				key, err = c.keyStore().Create(name, c.v.GetString("passphrase"))
			}
			if errors.Is(err, identity.ErrKeyExists) {
				return fmt.Errorf("key %q already exists in %s", name, c.keyStore().Dir())
			}
			if err != nil {
				return err
			}
			defer key.Zero()
			fmt.Fprintf(out, "created key %q\npublic_key: %s\n", name, key.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "key name")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the private key instead of storing it")
	cmd.Flags().BoolVar(&list, "list", false, "list stored keys")
	cmd.Flags().StringVar(&importHex, "import", "", "store this hex private key instead of generating one")
	cmd.MarkFlagsMutuallyExclusive("stdout", "list", "import")
	return cmd
}

// ── pubkey ───────────────────────────────────────────────────────────────────

func (c *cli) pubkeyCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Print the public key of a stored key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := c.loadKey(name)
			if err != nil {
				return err
			}
			defer key.Zero()
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "key name")
	return cmd
}

// ── sign ─────────────────────────────────────────────────────────────────────

func (c *cli) signCmd() *cobra.Command {
	var (
		name     string
		digestIn string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a 32-byte digest or the SHA-256 of a file",
		Long: `sign produces a deterministic (RFC 6979) secp256k1 signature, printed as
64-byte r||s hex.

  commitctl sign --digest <64 hex chars>
  commitctl sign --file payload.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := digestFromFlags(digestIn, file)
			if err != nil {
				return err
			}
			key, err := c.loadKey(name)
			if err != nil {
				return err
			}
			defer key.Zero()
			fmt.Fprintln(cmd.OutOrStdout(), key.Sign(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "key name")
	cmd.Flags().StringVar(&digestIn, "digest", "", "hex digest to sign")
	cmd.Flags().StringVar(&file, "file", "", "file whose SHA-256 is signed")
	cmd.MarkFlagsMutuallyExclusive("digest", "file")
	cmd.MarkFlagsOneRequired("digest", "file")
	return cmd
}

// ── verify ───────────────────────────────────────────────────────────────────

// errInvalidSignature makes verify exit non-zero without printing usage.
var errInvalidSignature = errors.New("signature is invalid")

func (c *cli) verifyCmd() *cobra.Command {
	var (
		digestIn string
		file     string
		sigHex   string
		pubHex   string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature against a digest and public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := digestFromFlags(digestIn, file)
			if err != nil {
				return err
			}
			// Malformed signatures and keys are reported as invalid, not as usage errors.
			sig, sigErr := identity.ParseSignature(sigHex)
			pub, pubErr := identity.ParsePublicKey(pubHex)
			if sigErr != nil || pubErr != nil || !sig.Verify(d, pub) {
				fmt.Fprintln(cmd.OutOrStdout(), "invalid")
				return errInvalidSignature
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&digestIn, "digest", "", "hex digest that was signed")
	cmd.Flags().StringVar(&file, "file", "", "file whose SHA-256 was signed")
	cmd.Flags().StringVar(&sigHex, "sig", "", "hex r||s signature")
	cmd.Flags().StringVar(&pubHex, "pubkey", "", "hex compressed public key")
	cmd.MarkFlagsMutuallyExclusive("digest", "file")
	cmd.MarkFlagsOneRequired("digest", "file")
	_ = cmd.MarkFlagRequired("sig")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func digestFromFlags(digestIn, file string) (digest.Hash, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return digest.Hash{}, fmt.Errorf("read %s: %w", file, err)
		}
		return digest.Sum(b), nil
	}
	d, err := digest.Parse(strings.TrimSpace(digestIn))
	if err != nil {
		return digest.Hash{}, fmt.Errorf("--digest: %w", err)
	}
	return d, nil
}

// ── token ────────────────────────────────────────────────────────────────────

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a commitd server",
		Long: `token signs an HS256 bearer token with the server's shared secret,
taken from COMMITCTL_TOKEN_SECRET or token_secret in the config file.
The issuer must match the server's auth.issuer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := c.v.GetString("token_secret")
			if secret == "" {
				return errors.New("token_secret is not configured")
			}
			issuer := identity.NewTokenIssuer([]byte(secret), c.v.GetString("issuer"), ttl)
			tok, err := issuer.Issue(subject, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "commitctl", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{identity.ScopeCommit}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
