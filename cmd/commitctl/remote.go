package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/jmerrifield20/commitcore/pkg/client"
	"github.com/spf13/cobra"
)

func (c *cli) client() (*client.Client, error) {
	var opts []client.Option
	if tok := c.v.GetString("token"); tok != "" {
		opts = append(opts, client.WithBearerToken(tok))
	}
	return client.New(c.v.GetString("server_url"), opts...)
}

func (c *cli) remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a commitd server",
		Long: `remote runs operations against the commitd server given by --server
(or server_url in the config file). Writes use the bearer token from
COMMITCTL_TOKEN or token in the config file.`,
	}
	cmd.AddCommand(c.remoteRootCmd(), c.remoteCommitCmd(), c.remoteLedgerCmd())
	return cmd
}

func (c *cli) remoteRootCmd() *cobra.Command {
	var hexInput bool
	cmd := &cobra.Command{
		Use:   "root [tx...]",
		Short: "Compute a Merkle root on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := readTransactions(args, cmd.InOrStdin(), hexInput)
			if err != nil {
				return err
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			res, err := cl.MerkleRoot(cmd.Context(), txs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Root)
			return nil
		},
	}
	cmd.Flags().BoolVar(&hexInput, "hex", false, "transactions are hex encoded")
	return cmd
}

func (c *cli) remoteCommitCmd() *cobra.Command {
	var hexInput bool
	cmd := &cobra.Command{
		Use:   "commit [tx...]",
		Short: "Seal a batch on the server and append it to the commitment log",
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := readTransactions(args, cmd.InOrStdin(), hexInput)
			if err != nil {
				return err
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			entry, err := cl.Commit(cmd.Context(), txs)
			if err != nil {
				return err
			}
			if err := entry.VerifySignature(); err != nil {
				return fmt.Errorf("server returned an entry that does not verify: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
	cmd.Flags().BoolVar(&hexInput, "hex", false, "transactions are hex encoded")
	return cmd
}

func (c *cli) remoteLedgerCmd() *cobra.Command {
	var (
		verify bool
		entry  int
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the commitment log, one entry, or audit the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case verify:
				ok, reason, err := cl.VerifyLedger(ctx)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "BROKEN: %s\n", reason)
					return fmt.Errorf("commitment log failed verification")
				}
				fmt.Fprintln(out, "ok")
				return nil

			case entry >= 0:
				e, err := cl.Entry(ctx, entry)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(e)

			default:
				o, err := cl.Ledger(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ENTRIES\tHEAD")
				fmt.Fprintf(w, "%d\t%s\n", o.Entries, o.Head)
				return w.Flush()
			}
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "walk the full chain and report integrity")
	cmd.Flags().IntVar(&entry, "entry", -1, "print the entry at this index")
	return cmd
}
