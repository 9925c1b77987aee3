package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance <address>",
	Short: "Screen an address against the risk API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := derive.ParseAddress(args[0])
		if err != nil {
			return err
		}

		logger := newLogger()
		cfg, err := loadConfig(logger)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client := compliance.NewClient(compliance.Config{
			APIKey:     cfg.RangeAPIKey,
			FailClosed: cfg.ComplianceFailClosed,
			Timeout:    cfg.HTTPTimeout,
			Logger:     logger,
		})
		r, err := client.Check(ctx, addr.String())
		if err != nil {
			return err
		}

		status := compliance.Describe(r)
		out := map[string]any{"result": r, "badge": compliance.Badge(r.RiskScore), "status": status}
		return emit(cmd.OutOrStdout(), out, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %s (%s, score %d/10)\n%s\n",
				r.Address, status.Text, compliance.Badge(r.RiskScore), r.RiskScore, status.Description)
		})
	},
}

func init() {
	rootCmd.AddCommand(complianceCmd)
}
