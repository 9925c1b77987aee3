package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/swapengine"
)

var (
	amount    string
	amountB   string
	bToA      bool
	mint      string
	recipient string
)

func ui(v *big.Int) string { return quote.FormatUIAmount(v, constants.ConfidentialDecimals) }

func parseUI(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: --%s is required", quote.ErrInvalidAmount, name)
	}
	return quote.ParseUIAmount(s, constants.ConfidentialDecimals)
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a swap against the decrypted reserves",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := parseUI("amount", amount)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			q, err := a.Engine.Quote(ctx, a.Session, in, !bToA)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), q, func(w io.Writer) { printQuote(w, q) })
		})
	},
}

func printQuote(w io.Writer, q *swapengine.Quote) {
	dir := "A -> B"
	if !q.Encrypted.AToB {
		dir = "B -> A"
	}
	fmt.Fprintf(w, "%s  in %s  out %s  fee %s (%d bps)  impact %.4f%%\n",
		dir, ui(q.AmountIn), ui(q.Estimate.AmountOut), ui(q.Estimate.FeeAmount), q.FeeBps, q.PriceImpact*100)
}

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Submit a confidential swap",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := parseUI("amount", amount)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			exec, err := a.Engine.Swap(ctx, a.Session, swapengine.SwapRequest{AmountIn: in, AToB: !bToA})
			return report(cmd.OutOrStdout(), exec, err)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove-liquidity",
	Short: "Withdraw liquidity from the pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parseUI("amount", amount)
		if err != nil {
			return err
		}
		b, err := parseUI("amount-b", amountB)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, ap *app.App) error {
			exec, err := ap.Engine.RemoveLiquidity(ctx, ap.Session, a, b)
			return report(cmd.OutOrStdout(), exec, err)
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send a confidential amount of a pool mint to another wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := derive.ParseAddress(mint)
		if err != nil {
			return err
		}
		to, err := derive.ParseAddress(recipient)
		if err != nil {
			return err
		}
		value, err := parseUI("amount", amount)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			exec, err := a.Engine.Transfer(ctx, a.Session, swapengine.TransferRequest{Mint: m, Recipient: to, Amount: value})
			return report(cmd.OutOrStdout(), exec, err)
		})
	},
}

// report prints an execution. A pending confirmation is not a failure.
func report(w io.Writer, exec *swapengine.Execution, err error) error {
	if exec != nil {
		_ = emit(w, exec, func(w io.Writer) {
			if exec.Quote != nil {
				printQuote(w, exec.Quote)
			}
			if exec.Receipt != nil {
				fmt.Fprintf(w, "%s %s\n", exec.Kind, exec.Receipt.Signature)
			}
		})
	}
	if errors.Is(err, submit.ErrConfirmationPending) {
		fmt.Fprintln(w, "submitted; confirmation still pending")
		return nil
	}
	return err
}

func init() {
	for _, c := range []*cobra.Command{quoteCmd, swapCmd} {
		c.Flags().StringVar(&amount, "amount", "", "input amount in whole tokens")
		c.Flags().BoolVar(&bToA, "b-to-a", false, "swap token B for token A")
	}
	removeCmd.Flags().StringVar(&amount, "amount", "", "token A amount in whole tokens")
	removeCmd.Flags().StringVar(&amountB, "amount-b", "", "token B amount in whole tokens")
	transferCmd.Flags().StringVar(&mint, "mint", "", "mint to transfer (A or B)")
	transferCmd.Flags().StringVar(&recipient, "to", "", "recipient wallet")
	transferCmd.Flags().StringVar(&amount, "amount", "", "amount in whole tokens")

	rootCmd.AddCommand(quoteCmd, swapCmd, removeCmd, transferCmd)
}
