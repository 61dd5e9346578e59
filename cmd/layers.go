// cmd/layers.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scrollstate/internal/coordinator"
	"github.com/xkilldash9x/scrollstate/internal/layers"
	"github.com/xkilldash9x/scrollstate/internal/metrics"
	"github.com/xkilldash9x/scrollstate/internal/observability"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// scrollRequest is a parsed --scroll value, "key=x,y".
type scrollRequest struct {
	key string
	to  scrolling.FloatPoint
}

func parseScrollRequest(s string) (scrollRequest, error) {
	key, pos, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return scrollRequest{}, fmt.Errorf("invalid scroll %q, want key=x,y", s)
	}
	xs, ys, ok := strings.Cut(pos, ",")
	if !ok {
		return scrollRequest{}, fmt.Errorf("invalid scroll position %q, want x,y", pos)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return scrollRequest{}, fmt.Errorf("invalid scroll x in %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return scrollRequest{}, fmt.Errorf("invalid scroll y in %q: %w", s, err)
	}
	return scrollRequest{key: strings.TrimSpace(key), to: scrolling.FloatPoint{X: x, Y: y}}, nil
}

func newLayersCmd() *cobra.Command {
	var (
		scrolls []string
		serve   bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "layers <page.html>",
		Short: "Map an HTML document onto a scrolling tree and print the committed result",
		Long: `Layers builds a scrolling state tree from the positioned and scrollable
elements of an HTML document, optionally scrolls some of them, commits the tree
and prints the scrolling side mirror.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q, want text or json", format)
			}
			requests := make([]scrollRequest, 0, len(scrolls))
			for _, s := range scrolls {
				req, err := parseScrollRequest(s)
				if err != nil {
					return err
				}
				requests = append(requests, req)
			}

			doc, err := layers.LoadFile(args[0])
			if err != nil {
				return err
			}

			collector := metrics.New(cfg.Metrics().Namespace)
			owner := layers.NewOwner(logger, cfg.Layers())
			// Written on the scrolling goroutine before CommitNow returns.
			var last *scrolling.StateTree
			c, err := coordinator.New(logger, cfg.Scrolling(),
				coordinator.WithManualCommits(),
				coordinator.WithMetrics(collector),
				coordinator.WithLayerResolver(owner),
				coordinator.WithCommitObserver(func(snapshot *scrolling.StateTree) { last = snapshot }))
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			runCtx, stop := context.WithCancel(gctx)
			defer stop()
			g.Go(func() error { return c.Run(runCtx) })
			if cfg.Metrics().Enabled {
				g.Go(func() error { return collector.Serve(runCtx, cfg.Metrics().ListenAddr, logger) })
			}

			g.Go(func() error {
				if !serve {
					defer stop()
				}
				res, err := owner.Sync(runCtx, c, doc)
				if err != nil {
					return err
				}
				logger.Info("Mapped document.",
					zap.String("file", args[0]),
					zap.Int("elements", len(owner.Elements())),
					zap.Int("inserted", res.Inserted))

				for _, req := range requests {
					moved, err := owner.Scroll(runCtx, c, req.key, req.to)
					if err != nil {
						return err
					}
					logger.Info("Scrolled.", zap.String("element", req.key), zap.Int("layers_moved", moved))
				}

				if _, err := c.CommitNow(runCtx); err != nil {
					return fmt.Errorf("commit failed: %w", err)
				}
				return writeTree(cmd.OutOrStdout(), format, c, last)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringArrayVar(&scrolls, "scroll", nil, "scroll an element before committing, as key=x,y (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text (scrolling side mirror) or json (committed snapshot)")
	cmd.Flags().BoolVar(&serve, "serve", false, "keep running and serve metrics until interrupted")
	cmd.Flags().Bool("serialized", false, "hand snapshots off as JSON and reattach layers by id")
	cmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	cmd.Flags().String("metrics-addr", "", "override metrics.listen_addr")
	return cmd
}

func writeTree(w io.Writer, format string, c *coordinator.Coordinator, snapshot *scrolling.StateTree) error {
	if format == "text" {
		_, err := fmt.Fprint(w, c.ScrollingTree().AsText())
		return err
	}
	if snapshot == nil {
		return errors.New("nothing was committed")
	}
	data, err := scrolling.EncodeJSON(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
