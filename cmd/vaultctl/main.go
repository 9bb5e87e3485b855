// Command vaultctl inspects the vault economy and submits wallet-signed
// ledger operations from a local keypair.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	rpcURL     string
	programID  string
	keypair    string
	backendKey string
	entryFee   uint64
	yes        bool
	verbose    bool
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operate the Vault Crack ledger program",
		Long:          `Inspect the pot, player ledgers and the backend signer, and submit deposits, withdrawals and combat entries signed by a local keypair.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	home, _ := os.UserHomeDir()
	flags := root.PersistentFlags()
	flags.StringVar(&opts.rpcURL, "rpc", envOr("SOLANA_RPC_URL", "https://api.devnet.solana.com"), "Solana JSON-RPC endpoint")
	flags.StringVar(&opts.programID, "program", os.Getenv("PROGRAM_ID"), "ledger program id")
	flags.StringVarP(&opts.keypair, "keypair", "k", filepath.Join(home, ".config", "solana", "id.json"), "wallet keypair file")
	flags.StringVar(&opts.backendKey, "backend-key", os.Getenv("BACKEND_PRIVATE_KEY"), "backend signer key, required for gasless entries")
	flags.Uint64Var(&opts.entryFee, "entry-fee", 10_000_000, "entry fee in lamports")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "skip confirmation prompts")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newStateCmd(opts),
		newTiersCmd(),
		newLedgerCmd(opts),
		newSignerCmd(opts),
		newReconcileCmd(opts),
		newDepositCmd(opts),
		newWithdrawCmd(opts),
		newEnterCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
