package main

import (
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-dataspace-client/auth"
	dsclient "github.com/robert-malhotra/go-dataspace-client/client"
)

// newClientFromCommand builds a catalog client from the root command's flags.
// Credentials are optional: without them the client runs unauthenticated,
// which the catalog accepts for search but not for product downloads.
func newClientFromCommand(cmd *cli.Command) (*dsclient.Client, func(), error) {
	catalogURL := cmd.String(catalogURLFlag.Name)
	if catalogURL == "" {
		return nil, nil, fmt.Errorf("flag --catalog-url is required")
	}

	logger := zap.NewNop()
	if cmd.Bool(verboseFlag.Name) {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []dsclient.ClientOption{
		dsclient.WithBaseURL(catalogURL),
		dsclient.WithTimeout(cmd.Duration(timeoutFlag.Name)),
		dsclient.WithLogger(logger.Sugar()),
	}

	if tokenURL := cmd.String(tokenURLFlag.Name); tokenURL != "" {
		tokens, err := auth.NewClientCredentials(auth.Config{
			TokenURL:     tokenURL,
			ClientID:     cmd.String(clientIDFlag.Name),
			ClientSecret: cmd.String(clientSecretFlag.Name),
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dsclient.WithTokenSource(tokens))
	}

	client, err := dsclient.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() { logger.Sync() }
	return client, cleanup, nil
}
