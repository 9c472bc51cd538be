package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/numfmt"
)

// runSnapshot loads both feeds once, without retries, and prints the fleet
// summary and the clusters with the most hours left.
func runSnapshot(ctx context.Context, w io.Writer, src ingest.Source, clusters bool, top int, logger *slog.Logger) error {
	store := ingest.NewStore()
	ctrl := ingest.NewController(src, store, ingest.Options{ClustersEnabled: clusters}, logger)
	ctrl.Stop()

	ctrl.LoadStatus(ctx)
	if clusters {
		ctrl.LoadClusters(ctx)
	}
	if _, seq := store.Status(); seq == 0 {
		if msg := store.StatusFeed().LastError; msg != "" {
			return errors.New(msg)
		}
		return errors.New("no status snapshot")
	}
	return writeSnapshot(w, store, clusters, top)
}

func writeSnapshot(w io.Writer, store *ingest.Store, clusters bool, top int) error {
	snap, _ := store.Status()
	feed := store.StatusFeed()
	sum := snap.Summary

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Systems\t%s\n", numfmt.FormatInteger(sum.TotalSystems))
	fmt.Fprintf(tw, "Uptime\t%s\n", numfmt.FormatPercent(sum.UptimeRatio*100))
	if snap.Meta.GeneratedAt != "" {
		fmt.Fprintf(tw, "Generated\t%s\n", snap.Meta.GeneratedAt)
	}
	if feed.UsingFallback {
		fmt.Fprintln(tw, "Source\tfallback snapshot")
	}
	for _, kc := range aggregate.SortedCounts(sum.StatusCounts) {
		fmt.Fprintf(tw, "  %s\t%s\n", kc.Key, numfmt.FormatInteger(kc.Count))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !clusters {
		return nil
	}

	cs, seq := store.Clusters()
	if seq == 0 {
		_, err := fmt.Fprintf(w, "\nClusters unavailable: %s\n", store.ClusterFeed().LastError)
		return err
	}
	ranked := aggregate.RankByRemaining(aggregate.Clusters(cs))
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	fmt.Fprintf(w, "\nTop %d clusters by hours remaining\n", len(ranked))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tREMAINING\tHOURS\tQUEUE")
	for _, s := range ranked {
		remaining, hours, queue := "--", "--", "--"
		if s.Usage.HasData {
			remaining = numfmt.FormatPercent(s.Usage.PercentRemaining)
			hours = numfmt.FormatHoursCompact(s.Usage.HoursRemaining)
		}
		if s.PlacementHint != nil {
			queue = s.PlacementHint.Queue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, remaining, hours, queue)
	}
	return tw.Flush()
}
