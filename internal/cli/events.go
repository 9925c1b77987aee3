package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
)

var (
	eventsLimit int
	follow      bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show journaled flow events, or follow live status with --follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			if follow {
				fmt.Fprintln(cmd.ErrOrStderr(), "following status events, Ctrl+C to stop")
				err := a.PubSub.Subscribe(ctx, constants.PubSubChannelStatus, func(ev *cache.Event) {
					_ = emit(out, ev, func(w io.Writer) { printEvent(w, ev) })
				})
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			if a.Journal == nil {
				return fmt.Errorf("event journal is not configured (set CLICKHOUSE_ADDR)")
			}
			var pool string
			if _, accts, err := a.Pool.Accounts(a.Session); err == nil {
				pool = accts.Pool.String()
			}
			items, err := a.Journal.Recent(ctx, pool, eventsLimit)
			if err != nil {
				return err
			}
			return emit(out, items, func(w io.Writer) {
				for _, ev := range items {
					printEvent(w, ev)
				}
			})
		})
	},
}

func printEvent(w io.Writer, ev *cache.Event) {
	what := ev.Stage
	if ev.Label != "" {
		what = ev.Label
	}
	fmt.Fprintf(w, "%s  %-10s %-32s %-9s %s %s\n",
		ev.Timestamp.Format("15:04:05"), ev.Kind, what, ev.Status, ev.Signature, ev.Error)
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "number of journaled events")
	eventsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow live status over Redis pub/sub")
	rootCmd.AddCommand(eventsCmd)
}
