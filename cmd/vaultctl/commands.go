package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/economy"
	"vaultcrack/internal/logger"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/tiers"
)

// session bundles the economy client with the operator's wallet. The wallet
// is nil for read-only commands run without a keypair file.
type session struct {
	client *economy.Client
	wallet *economy.Keypair
}

func (o *options) open(needWallet bool) (*session, error) {
	if o.programID == "" {
		return nil, errors.New("program id is required (--program or PROGRAM_ID)")
	}
	programID, err := solana.PublicKeyFromBase58(o.programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	wallet, walletErr := economy.LoadKeypairFile(o.keypair)
	if needWallet && walletErr != nil {
		return nil, walletErr
	}

	var backend *economy.Keypair
	switch {
	case o.backendKey != "":
		if backend, err = economy.ParseKeypair(o.backendKey); err != nil {
			return nil, fmt.Errorf("invalid backend key: %w", err)
		}
	case walletErr == nil:
		backend = wallet
	default:
		// Reads never sign; any key satisfies the client.
		if backend, err = economy.NewKeypair(solana.NewWallet().PrivateKey); err != nil {
			return nil, err
		}
	}

	client, err := economy.NewClient(economy.Config{
		Logger:    logger.New(o.verbose),
		RPC:       rpc.New(o.rpcURL),
		ProgramID: programID,
		Backend:   backend,
		EntryFee:  o.entryFee,
	})
	if err != nil {
		return nil, err
	}
	if walletErr != nil {
		wallet = nil
	}
	return &session{client: client, wallet: wallet}, nil
}

func (o *options) confirm(message string) (bool, error) {
	if o.yes {
		return true, nil
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 2*time.Minute)
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the pot, entry count and last winner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(false)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			state, err := s.client.GetGameState(ctx)
			if err != nil {
				return err
			}
			tier := tiers.Default.ResolveLamports(state.Pot)

			fmt.Println(titleStyle.Render("Vault"))
			fmt.Println(row("Pot", fmt.Sprintf("%s (%d lamports)", formatSOL(state.Pot), state.Pot)))
			fmt.Println(row("Entries", state.TotalEntries))
			fmt.Println(row("Current monster", fmt.Sprintf("%s (%d%% crack chance)", tier.Monster, tier.CrackChance)))
			if w := state.LastWinner; w != nil {
				fmt.Println(row("Last winner", w.Wallet.String()))
				fmt.Println(row("Last prize", formatSOL(w.Amount)))
				fmt.Println(row("Won at", time.Unix(w.Timestamp, 0).UTC().Format(time.RFC3339)))
			}
			return nil
		},
	}
}

func newTiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Show the difficulty table",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Println(titleStyle.Render("Difficulty tiers"))
			for _, t := range tiers.Default {
				fmt.Println(row(t.Monster, fmt.Sprintf("%s  crack %d%%  hp %d  atk %d", potRange(t), t.CrackChance, t.HitPoints, t.AttackPower)))
			}
			return nil
		},
	}
}

func newLedgerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger [wallet]",
		Short: "Show a player's ledger and payment options",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(len(args) == 0)
			if err != nil {
				return err
			}
			player := solana.PublicKey{}
			if len(args) == 1 {
				if player, err = solana.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("invalid wallet: %w", err)
				}
			} else {
				player = s.wallet.PublicKey()
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			ledger, err := s.client.GetPlayerLedger(ctx, player)
			if err != nil {
				return err
			}
			payOpts := s.client.GetPaymentOptions(ctx, player)

			fmt.Println(titleStyle.Render("Player " + player.String()))
			if ledger == nil {
				fmt.Println(valueStyle.Render("No ledger yet. Deposit to create one."))
			} else {
				fmt.Println(row("Ledger balance", formatSOL(ledger.Balance)))
				fmt.Println(row("Combats", ledger.CombatCount))
				fmt.Println(row("Victories", ledger.Victories))
				fmt.Println(row("Total winnings", formatSOL(ledger.TotalWinnings)))
				fmt.Println(row("Last rail", ledger.LastRail))
			}
			fmt.Println(row("Wallet balance", formatSOL(payOpts.WalletBalance)))
			fmt.Println(row("Can pay from wallet", payOpts.CanPayFromWallet))
			fmt.Println(row("Can pay from ledger", payOpts.CanPayFromLedger))
			fmt.Println(row("Recommended rail", payOpts.RecommendedRail))
			fmt.Println(row("Prize route", payment.RouteFor(ledger)))
			return nil
		},
	}
}

func newSignerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signer",
		Short: "Show the backend signer balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.backendKey == "" {
				return errors.New("backend key is required (--backend-key or BACKEND_PRIVATE_KEY)")
			}
			s, err := opts.open(false)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			status, err := s.client.GetSignerStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Backend signer"))
			fmt.Println(row("Address", status.Address.String()))
			fmt.Println(row("Balance", formatSOL(status.Balance)))
			if status.Low {
				fmt.Println(warningStyle.Render("Balance is below the minimum operating balance; gasless entries are refused."))
			} else {
				fmt.Println(okStyle.Render("Balance OK"))
			}
			return nil
		},
	}
}

func newReconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the recorded pot with the vault balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(false)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			r, err := s.client.ReconcileVault(ctx)
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Vault reconciliation"))
			fmt.Println(row("Vault", r.Vault.String()))
			fmt.Println(row("Recorded pot", formatSOL(r.RecordedPot)))
			fmt.Println(row("Vault balance", formatSOL(r.VaultBalance)))
			fmt.Println(row("Reserve", formatSOL(r.Reserve)))
			switch {
			case r.Balanced():
				fmt.Println(okStyle.Render("Balanced"))
			case r.Shortfall > 0:
				fmt.Println(warningStyle.Render("Shortfall " + formatSOL(r.Shortfall)))
			default:
				fmt.Println(warningStyle.Render("Untracked " + formatSOL(r.Untracked)))
			}
			return nil
		},
	}
}

func newDepositCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <sol>",
		Short: "Move SOL from your wallet into your ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transfer(cmd, opts, args[0], "Deposit", func(ctx context.Context, s *session, amount uint64) (solana.Signature, error) {
				return s.client.DepositToLedger(ctx, s.wallet, amount)
			})
		},
	}
}

func newWithdrawCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <sol>",
		Short: "Move SOL from your ledger back to your wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transfer(cmd, opts, args[0], "Withdraw", func(ctx context.Context, s *session, amount uint64) (solana.Signature, error) {
				return s.client.WithdrawFromLedger(ctx, s.wallet, amount)
			})
		},
	}
}

func transfer(cmd *cobra.Command, opts *options, arg, verb string,
	submit func(ctx context.Context, s *session, amount uint64) (solana.Signature, error)) error {
	amount, err := parseSOL(arg)
	if err != nil {
		return err
	}
	s, err := opts.open(true)
	if err != nil {
		return err
	}

	ok, err := opts.confirm(fmt.Sprintf("%s %s for %s?", verb, formatSOL(amount), s.wallet.PublicKey()))
	if err != nil || !ok {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	fmt.Println(valueStyle.Render("Sending transaction... Please wait."))
	sig, err := submit(ctx, s, amount)
	if err != nil {
		return describe(err)
	}
	fmt.Println(okStyle.Render(verb + " confirmed"))
	fmt.Println(row("Signature", sig.String()))
	return nil
}

func newEnterCmd(opts *options) *cobra.Command {
	var railName string

	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Pay the entry fee for one combat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(true)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			router := payment.NewRouter(logger.New(opts.verbose), s.client)
			player := s.wallet.PublicKey()

			var rail chain.Rail
			if railName == "" {
				rail, _ = router.Recommend(ctx, player)
			} else if err := rail.UnmarshalText([]byte(railName)); err != nil {
				return err
			}
			if rail == chain.RailLedger && opts.backendKey == "" {
				return errors.New("ledger entries are signed by the backend; set --backend-key")
			}

			ok, err := opts.confirm(fmt.Sprintf("Enter combat paying %s from your %s?", formatSOL(opts.entryFee), rail))
			if err != nil || !ok {
				return err
			}

			receipt, err := router.Enter(ctx, payment.EntryRequest{Player: player, Rail: rail, Wallet: s.wallet})
			if err != nil {
				return describe(err)
			}
			fmt.Println(okStyle.Render("Entry confirmed"))
			fmt.Println(row("Rail", receipt.Rail))
			fmt.Println(row("Signature", receipt.Signature.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&railName, "rail", "", "payment rail: wallet or ledger (default: recommended)")
	return cmd
}

// describe surfaces the program's own error message for rejections.
func describe(err error) error {
	var rejected *economy.RejectedError
	if errors.As(err, &rejected) {
		if msg := rejected.ProgramError(); msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
	}
	return err
}

// parseSOL converts a decimal SOL amount to lamports.
func parseSOL(s string) (uint64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" && frac == "" {
		return 0, errors.New("amount is required")
	}
	if len(frac) > 9 {
		return 0, fmt.Errorf("amount %q has more than 9 decimal places", s)
	}

	var lamports uint64
	if whole != "" {
		w, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if w > math.MaxUint64/tiers.LamportsPerSOL {
			return 0, fmt.Errorf("amount %q is too large", s)
		}
		lamports = w * tiers.LamportsPerSOL
	}
	if frac != "" {
		f, err := strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if lamports > math.MaxUint64-f {
			return 0, fmt.Errorf("amount %q is too large", s)
		}
		lamports += f
	}
	if lamports == 0 {
		return 0, errors.New("amount must be greater than 0")
	}
	return lamports, nil
}

func formatSOL(lamports uint64) string {
	return strconv.FormatFloat(tiers.ToSOL(lamports), 'f', -1, 64) + " SOL"
}

func potRange(t tiers.Tier) string {
	if math.IsInf(t.MaxPot, 1) {
		return fmt.Sprintf("%g+ SOL", t.MinPot)
	}
	return fmt.Sprintf("%g-%g SOL", t.MinPot, t.MaxPot)
}

func fmtValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
