package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	dsclient "github.com/robert-malhotra/go-dataspace-client/client"
	"github.com/robert-malhotra/go-dataspace-client/query"
)

func newSearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the catalog for imagery items",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "collection",
				Aliases: []string{"c"},
				Usage:   "collection to search, e.g. SENTINEL-2",
			},
			&cli.StringFlag{
				Name:  "bbox",
				Usage: "area of interest as minLon,minLat,maxLon,maxLat",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "earliest acquisition time (RFC 3339 or YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "latest acquisition time (RFC 3339 or YYYY-MM-DD)",
			},
			&cli.FloatFlag{
				Name:  "cloud-cover",
				Usage: "maximum eo:cloud_cover percentage",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "items per page",
			},
			&cli.IntFlag{
				Name:  "max-pages",
				Usage: "stop after this many pages (0 for the client default)",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "prompt between batches of results",
			},
		},
		Action: searchAction,
	}
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	filter, err := filterFromCommand(cmd)
	if err != nil {
		return err
	}
	params, err := filter.Encode()
	if err != nil {
		return err
	}

	client, cleanup, err := newClientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var stats dsclient.SearchStats
	searchOpts := []dsclient.SearchOption{dsclient.WithStats(&stats)}
	if pages := cmd.Int("max-pages"); pages > 0 {
		searchOpts = append(searchOpts, dsclient.WithPageCap(int(pages)))
	}

	seq := client.Search().Query(ctx, params, searchOpts...)
	marshal := func(summary *itemSummary) ([]byte, error) {
		return json.MarshalIndent(summary, "", "  ")
	}

	if cmd.Bool("interactive") {
		err = printJSONArrayInteractive(summarize(seq), marshal)
	} else {
		var entries [][]byte
		entries, err = collectForCLI(summarize(seq), marshal)
		if err == nil {
			err = printJSONArray(entries)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d items across %d pages", stats.Items, stats.Pages)
	if stats.Duplicates > 0 {
		fmt.Fprintf(os.Stderr, " (%d boundary duplicates suppressed)", stats.Duplicates)
	}
	if stats.Truncated {
		fmt.Fprint(os.Stderr, " [truncated by page cap]")
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

func filterFromCommand(cmd *cli.Command) (query.Filter, error) {
	filter := query.Filter{
		Collection: cmd.String("collection"),
		Limit:      int(cmd.Int("limit")),
	}

	if raw := cmd.String("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			return query.Filter{}, err
		}
		filter.BBox = bbox
	}

	var err error
	if filter.From, err = parseFlagTime(cmd.String("from")); err != nil {
		return query.Filter{}, fmt.Errorf("flag --from: %w", err)
	}
	if filter.To, err = parseFlagTime(cmd.String("to")); err != nil {
		return query.Filter{}, fmt.Errorf("flag --to: %w", err)
	}

	if cover := cmd.Float("cloud-cover"); cover >= 0 {
		filter.CloudCoverMax = query.CloudCover(cover)
	}
	return filter, nil
}

func parseBBox(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	bbox := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("flag --bbox: %q is not a number", part)
		}
		bbox = append(bbox, v)
	}
	return bbox, nil
}

func parseFlagTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", raw)
	}
	return t, nil
}
