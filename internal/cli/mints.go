package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
)

var mintsCmd = &cobra.Command{
	Use:   "mints",
	Short: "Manage the confidential mint pair",
}

var mintsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the mint pair in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, ok := a.Session.Mints()
			if !ok {
				return pool.ErrNoMints
			}
			return emit(cmd.OutOrStdout(), m, func(w io.Writer) {
				fmt.Fprintf(w, "mint A: %s\nmint B: %s\nsource: %s\n", m.MintA, m.MintB, m.Source)
			})
		})
	},
}

var mintsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a fresh mint pair owned by the wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, receipts, err := a.Pool.CreateMints(ctx, a.Session)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), map[string]any{"mints": m, "receipts": receipts}, func(w io.Writer) {
				fmt.Fprintf(w, "mint A: %s\nmint B: %s\n", m.MintA, m.MintB)
				for _, r := range receipts {
					fmt.Fprintf(w, "  %-16s %s\n", r.Label, r.Signature)
				}
			})
		})
	},
}

var mintsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored mint pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Pool.ClearMints(ctx, a.Session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mint configuration cleared")
			return nil
		})
	},
}

func init() {
	mintsCmd.AddCommand(mintsShowCmd, mintsCreateCmd, mintsClearCmd)
	rootCmd.AddCommand(mintsCmd)
}
