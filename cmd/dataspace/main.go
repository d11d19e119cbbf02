// Command dataspace searches a Copernicus-style imagery catalog and downloads
// product assets with resume and integrity verification.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

var (
	catalogURLFlag = &cli.StringFlag{
		Name:    "catalog-url",
		Aliases: []string{"u"},
		Usage:   "catalog API base URL",
		Sources: cli.EnvVars("DATASPACE_CATALOG_URL"),
		Value:   "https://catalogue.dataspace.copernicus.eu/stac",
	}
	tokenURLFlag = &cli.StringFlag{
		Name:    "token-url",
		Usage:   "OAuth2 token endpoint for authenticated requests",
		Sources: cli.EnvVars("DATASPACE_TOKEN_URL"),
	}
	clientIDFlag = &cli.StringFlag{
		Name:    "client-id",
		Usage:   "OAuth2 client id",
		Sources: cli.EnvVars("DATASPACE_CLIENT_ID"),
	}
	clientSecretFlag = &cli.StringFlag{
		Name:    "client-secret",
		Usage:   "OAuth2 client secret",
		Sources: cli.EnvVars("DATASPACE_CLIENT_SECRET"),
	}
	timeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "HTTP client timeout (e.g. 30s, 1m)",
		Value:   5 * time.Minute,
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log requests and retries to stderr",
	}
)

func main() {
	cmd := &cli.Command{
		Name:  "dataspace",
		Usage: "Search and download Copernicus Data Space imagery",
		Flags: []cli.Flag{
			catalogURLFlag, tokenURLFlag, clientIDFlag, clientSecretFlag,
			timeoutFlag, verboseFlag,
		},
		Commands: []*cli.Command{
			newSearchCommand(),
			newDownloadCommand(),
			newCollectionsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
