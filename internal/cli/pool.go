package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect and set up the pool",
}

var poolStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the pool's setup stage without sending anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			st, err := a.Pool.Probe(ctx, a.Session)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), st, func(w io.Writer) {
				fmt.Fprintf(w, "stage:  %s\n%s\n", st.Stage, st.Message)
				if st.Accounts != nil {
					fmt.Fprintf(w, "pool:   %s\n", st.Accounts.Pool)
				}
				if st.PoolExists && !st.Funded {
					fmt.Fprintln(w, "pool has no liquidity yet")
				}
				if len(st.Undelegated) > 0 {
					fmt.Fprintf(w, "undelegated: %s\n", strings.Join(st.Undelegated, ", "))
				}
			})
		})
	},
}

var poolSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run pool setup through to ready, resuming where it left off",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report, err := a.Pool.Setup(ctx, a.Session)
			if report != nil {
				_ = emit(cmd.OutOrStdout(), report, func(w io.Writer) { printReport(w, report) })
			}
			return err
		})
	},
}

func printReport(w io.Writer, r *pool.SetupReport) {
	fmt.Fprintf(w, "run %s: %s\n", r.RunID, r.Stage.Message())
	for _, rc := range r.Receipts {
		state := "confirmed"
		if rc.Pending {
			state = "pending"
		}
		fmt.Fprintf(w, "  %-40s %-9s %s\n", rc.Label, state, rc.Signature)
	}
	if r.Delegation != nil {
		for _, label := range r.Delegation.SkippedOps {
			fmt.Fprintf(w, "  %-40s %-9s\n", label, "done")
		}
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func init() {
	poolCmd.AddCommand(poolStatusCmd, poolSetupCmd)
	rootCmd.AddCommand(poolCmd)
}
