package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/jmerrifield20/commitcore/internal/merkle"
	"github.com/spf13/cobra"
)

// ── root ─────────────────────────────────────────────────────────────────────

func (c *cli) rootCmd() *cobra.Command {
	var (
		hexInput bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "root [tx...]",
		Short: "Compute the Merkle root of a batch of transactions",
		Long: `root hashes each transaction with SHA-256 and reduces the leaves to a
single root, duplicating the last node of odd-sized layers.

Transactions are taken from the arguments, or one per line from stdin.

  printf 'a\nb\nc\n' | commitctl root
  commitctl root --hex 00ff 0102`,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := readTransactions(args, cmd.InOrStdin(), hexInput)
			if err != nil {
				return err
			}
			tree, err := merkle.Build(hashables(txs), merkle.WithWorkers(runtime.NumCPU()))
			if err != nil {
				return err
			}
			root := tree.Root()

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"root":   root,
					"cid":    root.CID(),
					"leaves": len(txs),
					"depth":  tree.Depth(),
				})
			}
			fmt.Fprintln(out, root)
			return nil
		},
	}
	cmd.Flags().BoolVar(&hexInput, "hex", false, "transactions are hex encoded")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

// ── proof ────────────────────────────────────────────────────────────────────

func (c *cli) proofCmd() *cobra.Command {
	var (
		hexInput bool
		index    int
	)
	cmd := &cobra.Command{
		Use:   "proof --index N [tx...]",
		Short: "Print the inclusion proof for one transaction as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := readTransactions(args, cmd.InOrStdin(), hexInput)
			if err != nil {
				return err
			}
			tree, err := merkle.Build(hashables(txs))
			if err != nil {
				return err
			}
			proof, err := tree.Proof(index)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"root":  tree.Root(),
				"leaf":  tree.Leaves()[index],
				"proof": proof,
			})
		},
	}
	cmd.Flags().BoolVar(&hexInput, "hex", false, "transactions are hex encoded")
	cmd.Flags().IntVar(&index, "index", 0, "leaf index to prove")
	return cmd
}
