package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/urfave/cli/v3"

	dsclient "github.com/robert-malhotra/go-dataspace-client/client"
)

func newDownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a product asset with resume and verification",
		ArgsUsage: "<item-id | url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "collection",
				Aliases: []string{"c"},
				Usage:   "collection the item belongs to",
			},
			&cli.StringFlag{
				Name:  "asset",
				Usage: "asset key to download",
				Value: dsclient.DefaultAssetKey,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "destination file (defaults to <item-id>.zip)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress the progress bar",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: an item id or a direct asset URL")
	}
	target := cmd.Args().First()

	client, cleanup, err := newClientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	req := dsclient.DownloadRequest{
		Destination: cmd.String("output"),
		AssetKey:    cmd.String("asset"),
	}
	if strings.Contains(target, "://") {
		req.URL = target
		if req.Destination == "" {
			return fmt.Errorf("flag --output is required when downloading a direct URL")
		}
	} else {
		req.ItemID = target
		req.Collection = cmd.String("collection")
		if req.Destination == "" {
			req.Destination = target + ".zip"
		}
	}

	var bar *pb.ProgressBar
	if !cmd.Bool("quiet") {
		req.Progress = func(downloaded, total int64) {
			if bar == nil {
				bar = pb.Full.Start64(total)
				bar.Set(pb.Bytes, true)
			}
			if total > 0 {
				bar.SetTotal(total)
			}
			bar.SetCurrent(downloaded)
		}
	}

	state, err := client.Downloads().Download(ctx, req)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if state != nil && state.BytesWritten > 0 {
			fmt.Fprintf(os.Stderr, "%d bytes kept at %s; rerun to resume\n", state.BytesWritten, state.Destination)
		}
		return err
	}

	if state.Unverified {
		fmt.Fprintf(os.Stderr, "warning: no checksum or size declared, %s is unverified\n", state.Destination)
	}
	resumed := ""
	if state.Resumed {
		resumed = " (resumed)"
	}
	fmt.Fprintf(os.Stdout, "%s: %d bytes%s\n", state.Destination, state.BytesWritten, resumed)
	return nil
}
