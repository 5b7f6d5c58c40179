package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmerrifield20/commitcore/internal/digest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "commitctl",
		Short: "commitcore signing and commitment CLI",
		Long: `commitctl manages secp256k1 signing keys, computes Merkle roots and
inclusion proofs locally, and talks to a commitd server.

Keys live in a key store directory (default ~/.commitctl/keys). Set
COMMITCTL_PASSPHRASE to seal new keys and unlock sealed ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ~/.commitctl/config.yaml)")
	root.PersistentFlags().String("key-dir", "", "key store directory (default ~/.commitctl/keys)")
	root.PersistentFlags().String("server", "", "commitd base URL (default http://localhost:8080)")
	_ = c.v.BindPFlag("key_dir", root.PersistentFlags().Lookup("key-dir"))
	_ = c.v.BindPFlag("server_url", root.PersistentFlags().Lookup("server"))

	root.AddCommand(
		c.keygenCmd(),
		c.pubkeyCmd(),
		c.signCmd(),
		c.verifyCmd(),
		c.rootCmd(),
		c.proofCmd(),
		c.tokenCmd(),
		c.remoteCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command) error {
	home, _ := os.UserHomeDir()
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.AddConfigPath(filepath.Join(home, ".commitctl"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}
	c.v.SetEnvPrefix("commitctl")
	c.v.AutomaticEnv()

	c.v.SetDefault("key_dir", filepath.Join(home, ".commitctl", "keys"))
	c.v.SetDefault("server_url", "http://localhost:8080")
	c.v.SetDefault("passphrase", "")
	c.v.SetDefault("token", "")
	c.v.SetDefault("token_secret", "")
	c.v.SetDefault("issuer", "commitd")

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the commitctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "commitctl %s (commitcore)\n", version)
		},
	}
}

// readTransactions returns args as transactions, or newline-separated
// transactions from in when args is empty. With hexInput each transaction
// is hex-decoded, otherwise its UTF-8 bytes are used as-is.
func readTransactions(args []string, in io.Reader, hexInput bool) ([][]byte, error) {
	lines := args
	if len(lines) == 0 {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		for sc.Scan() {
			if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
				lines = append(lines, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	txs := make([][]byte, len(lines))
	for i, l := range lines {
		if !hexInput {
			txs[i] = []byte(l)
			continue
		}
		b, err := hex.DecodeString(l)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs[i] = b
	}
	return txs, nil
}

func hashables(txs [][]byte) []digest.Hashable {
	out := make([]digest.Hashable, len(txs))
	for i, tx := range txs {
		out[i] = digest.Bytes(tx)
	}
	return out
}
