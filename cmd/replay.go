// cmd/replay.go
package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrollstate/internal/metrics"
	"github.com/xkilldash9x/scrollstate/internal/observability"
	"github.com/xkilldash9x/scrollstate/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Run scripted tree scenarios through the commit pipeline",
		Long: `Replay runs each scenario against a fresh coordinator, checks every
declared expectation and prints a dump of each applied snapshot.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			out := cmd.OutOrStdout()

			opts := []replay.Option{}
			if !quiet {
				opts = append(opts, replay.WithOutput(out))
			}
			var collector *metrics.Collector
			if cfg.Metrics().Enabled {
				collector = metrics.New(cfg.Metrics().Namespace)
				opts = append(opts, replay.WithMetrics(collector))
			}
			runner, err := replay.NewRunner(logger, cfg.Scrolling(), opts...)
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				s, err := replay.LoadFile(path)
				if err != nil {
					return err
				}
				res, err := runner.Run(ctx, s)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", s.Name, err)
					continue
				}
				fmt.Fprintf(out, "PASS %s steps=%d commits=%d skipped=%d reconciled=%d\n",
					res.Name, res.Steps, res.Commits, res.Skipped, res.Reconciled)
			}

			if collector != nil {
				if err := printSummary(out, collector); err != nil {
					logger.Warn("Could not print metrics summary.", zap.Error(err))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print snapshot dumps")
	cmd.Flags().String("representation", "", "override scrolling.layer_representation")
	cmd.Flags().Bool("serialized", false, "hand snapshots off as JSON")
	cmd.Flags().StringSlice("dump", nil, "override scrolling.dump_behavior (node-ids, layer-ids, layer-positions, changed-properties, unparented, all)")
	cmd.Flags().Bool("metrics", false, "collect metrics and print a summary")
	return cmd
}

func printSummary(w io.Writer, c *metrics.Collector) error {
	summary, err := c.Summary()
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(summary)) {
		if _, err := fmt.Fprintf(w, "%s %g\n", name, summary[name]); err != nil {
			return err
		}
	}
	return nil
}
